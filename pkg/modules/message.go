package modules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
	"github.com/devicelab-dev/droidprobe/pkg/uidump"
)

const (
	messagingActivity = "com.google.android.apps.messaging/.ui.ConversationListActivity"
	smsResultFile     = "result.csv"
	smsLogFile        = "sms_log.txt"
	smsMaxLength      = 480
	smsSendDelay      = 5 * time.Second
)

var (
	smsNumber       = regexp.MustCompile(`^[6-9]\d{9}$`)
	smsResultHeader = []string{"Test Case ID", "Description", "Phone Number", "Message", "Status", "Output", "Timestamp"}
)

func validNumber(n string) bool {
	return smsNumber.MatchString(strings.TrimSpace(n))
}

func init() {
	suite.AddModule(&suite.Module{
		Name: "Message",
		Desc: "SMS composition and delivery through the Messages app",
		Cases: []*suite.Case{
			{Name: "test_valid_number", Desc: "Send message to valid number", Params: []string{"number", "message"},
				Func: func(s *suite.State) { sendSMS(s, s.Param("number"), s.Param("message"), "TC01", "Send message to valid number") }},
			{Name: "test_invalid_number", Desc: "Send message to invalid number", Params: []string{"number", "message"},
				Func: func(s *suite.State) { sendSMS(s, s.Param("number"), s.Param("message"), "TC02", "Send message to invalid number") }},
			{Name: "test_empty_message", Desc: "Send empty message", Params: []string{"number"},
				Func: func(s *suite.State) { sendSMS(s, s.Param("number"), "", "TC03", "Send empty message") }},
			{Name: "test_long_message", Desc: "Send long message", Params: []string{"number", "message"}, Func: smsLongMessage},
			{Name: "test_special_characters", Desc: "Send message with special characters", Params: []string{"number", "message"},
				Func: func(s *suite.State) {
					sendSMS(s, s.Param("number"), s.Param("message"), "TC05", "Send message with special characters")
				}},
			{Name: "test_multiple_recipients", Desc: "Send message to multiple recipients", Params: []string{"numbers", "message"}, Func: smsMultipleRecipients},
			{Name: "test_network_off", Desc: "Send message with network OFF", Params: []string{"number", "message"}, Func: smsNetworkOff},
			{Name: "test_save_logcat", Desc: "Save logcat", Func: smsSaveLogcat},
			{Name: "test_without_wifi", Desc: "Send SMS without SIM or active network", Params: []string{"number", "message"}, Func: smsWithoutNetwork},
			{Name: "test_emoji_only", Desc: "Send SMS with only emojis", Params: []string{"number"},
				Func: func(s *suite.State) { sendSMS(s, s.Param("number"), "😂❤️🔥🙏✨", "TC09", "Send SMS with only emojis") }},
			{Name: "test_combo_emoji_text_special", Desc: "Send SMS with emoji, text, and special characters", Params: []string{"number", "message"},
				Func: func(s *suite.State) {
					sendSMS(s, s.Param("number"), s.Param("message"), "TC10", "Send SMS with emoji, text, and special characters")
				}},
			{Name: "test_after_reboot", Desc: "Send SMS after reboot", Params: []string{"number", "message"}, Func: smsAfterReboot},
			{Name: "test_while_heavy_app_running", Desc: "Send SMS while heavy app is running", Params: []string{"number", "message"}, Func: smsHeavyApp},
			{Name: "test_scroll_older", Desc: "Scroll to older messages", Params: []string{"contact"},
				Func: func(s *suite.State) { smsScroll(s, "up") }},
			{Name: "test_scroll_newer", Desc: "Scroll to newer messages", Params: []string{"contact"},
				Func: func(s *suite.State) { smsScroll(s, "down") }},
			{Name: "test_search_contact", Desc: "Search & open contact chat", Params: []string{"contact"},
				Func: func(s *suite.State) { openMessagesAndSearch(s, s.Param("contact")) }},
			{Name: "test_battery_saver_on", Desc: "Send SMS with Battery Saver mode ON", Params: []string{"number"}, Func: smsBatterySaver},
			{Name: "test_spam_same_number", Desc: "Send repeated messages to same number", Params: []string{"number"}, Func: smsSpam},
			{Name: "test_url", Desc: "Send SMS with URL and test auto-link behavior", Params: []string{"number"},
				Func: func(s *suite.State) {
					sendSMS(s, s.Param("number"), "Check this out: https://www.openai.com", "TC19", "Send SMS with URL and test auto-link behavior")
				}},
		},
	})
}

func logSMSResult(s *suite.State, id, desc, number, message, status, output string) {
	s.AppendCSV(smsResultFile, smsResultHeader, []string{
		id, desc, number, message, status, output, s.Now().Format("2006-01-02 15:04:05"),
	})
}

// sendSMS validates the input, opens the compose screen through the SENDTO
// intent and taps the send button, re-trying the tap once. Rejected input is
// recorded as a Fail row but does not fail the case; only a send that could
// not be completed does.
func sendSMS(s *suite.State, number, message, id, desc string) {
	number = strings.TrimSpace(number)
	message = strings.TrimSpace(message)

	if !validNumber(number) {
		logSMSResult(s, id, desc, number, message, "Fail", "Invalid phone number format")
		s.Printf("[❌] Invalid phone number: %s\n", number)
		return
	}
	if message == "" {
		logSMSResult(s, id, desc, number, message, "Fail", "Empty message not allowed")
		s.Printf("[❌] Cannot send empty message to %s\n", number)
		return
	}

	res := s.ADB().Exec(s.Ctx(), shell("am", "start",
		"-a", "android.intent.action.SENDTO",
		"-d", "sms:"+number,
		"--es", "sms_body", "'"+message+"'",
		"--ez", "exit_on_sent", "true")...)
	s.Sleep(smsSendDelay)

	sent := clickSendButton(s)
	if !sent {
		s.Printf("[!] Retrying click on send button...\n")
		s.Sleep(smsSendDelay)
		sent = clickSendButton(s)
	}

	status := "Fail"
	if sent {
		status = "Pass"
	}
	output := strings.TrimSpace(res.Stdout)
	if output == "" {
		output = strings.TrimSpace(res.Stderr)
	}
	logSMSResult(s, id, desc, number, message, status, output)
	if sent {
		s.Printf("[%s] Message sent to %s\n", status, number)
		return
	}
	s.Printf("[%s] Message not sent\n", status)
	s.Errorf("%s: send button not found", id)
}

func clickSendButton(s *suite.State) bool {
	nodes, err := uidump.Dump(s.Ctx(), s.ADB(), filepath.Join(s.OutDir(), "window_dump.xml"))
	if err != nil {
		s.Warnf("window dump: %v", err)
		return false
	}
	btn, ok := uidump.FindSendButton(nodes)
	if !ok {
		return false
	}
	if err := uidump.Tap(s.Ctx(), s.ADB(), btn); err != nil {
		s.Warnf("tap send: %v", err)
		return false
	}
	return true
}

func smsLongMessage(s *suite.State) {
	number, message := s.Param("number"), s.Param("message")
	if n := utf8.RuneCountInString(message); n > smsMaxLength {
		s.Printf("[❌] Message length = %d. Limit is %d. Message not sent.\n", n, smsMaxLength)
		logSMSResult(s, "TC04", "Send long message", number, message, "Fail",
			fmt.Sprintf("Message too long (%d characters)", n))
		return
	}
	sendSMS(s, number, message, "TC04", "Send long message")
}

func smsMultipleRecipients(s *suite.State) {
	message := s.Param("message")
	for i, num := range strings.Split(s.Param("numbers"), ",") {
		sendSMS(s, num, message, fmt.Sprintf("TC06_%d", i+1), "Send message to multiple recipients")
	}
}

func toggleAirplane(s *suite.State, on bool) {
	flag, state := "0", "false"
	if on {
		flag, state = "1", "true"
	}
	s.Check("Airplane mode "+flag, shell("settings", "put", "global", "airplane_mode_on", flag)...)
	s.Check("Broadcast airplane mode", shell("am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", state)...)
	s.Sleep(2 * time.Second)
}

func smsNetworkOff(s *suite.State) {
	number, message := s.Param("number"), s.Param("message")
	toggleAirplane(s, true)
	defer toggleAirplane(s, false)
	sendSMS(s, number, message, "TC07", "Send message with network OFF")
}

func smsSaveLogcat(s *suite.State) {
	if s.SaveLogcat(smsLogFile) == "" {
		s.Fatalf("logcat capture failed")
	}
	s.Printf("[✔] Logcat saved to %s\n", smsLogFile)
}

func smsWithoutNetwork(s *suite.State) {
	number, message := s.Param("number"), s.Param("message")
	s.Printf("[!] Disabling mobile data and Wi-Fi...\n")
	s.Check("Disable mobile data", shell("svc", "data", "disable")...)
	s.Check("Disable Wi-Fi", shell("svc", "wifi", "disable")...)
	s.Sleep(3 * time.Second)
	sendSMS(s, number, message, "TC08", "Send SMS without SIM or active network")
	// Blocks on the prompter until the operator has restored connectivity.
	s.Printf("[!] Enable data/Wi-Fi manually and confirm...\n")
	s.Param("network_restored")
}

func smsAfterReboot(s *suite.State) {
	number, message := s.Param("number"), s.Param("message")
	s.Printf("[⚠] Rebooting device now...\n")
	s.Check("Reboot", "reboot")
	s.Printf("Waiting for device to reboot...\n")
	if err := s.ADB().WaitForDevice(s.Ctx()); err != nil {
		s.Logf("wait-for-device: %v", err)
	}
	s.Printf("[🔄] Waiting for device to be ready...\n")
	if err := s.ADB().WaitForBoot(s.Ctx(), 2*time.Second); err != nil {
		s.Fatal(err)
	}
	s.Printf("[✅] Device boot completed.\n")
	s.Sleep(10 * time.Second)
	s.Printf("[📲] Re-opening Messages app after reboot...\n")
	s.Check("Open Messages", shell("am", "start", "-n", messagingActivity)...)
	s.Sleep(20 * time.Second)
	sendSMS(s, number, message, "TC11", "Send SMS after reboot")
}

func smsHeavyApp(s *suite.State) {
	number, message := s.Param("number"), s.Param("message")
	s.Printf("[📱] Launching YouTube as heavy app...\n")
	s.Check("Launch YouTube", shell("monkey", "-p", "com.google.android.youtube", "-c", "android.intent.category.LAUNCHER", "1")...)
	s.Sleep(10 * time.Second)
	sendSMS(s, number, message, "TC12", "Send SMS while heavy app is running")
}

func openMessagesAndSearch(s *suite.State, contact string) {
	s.Printf("[📲] Launching Messages app...\n")
	s.Check("Open Messages", shell("am", "start", "-n", messagingActivity)...)
	s.Sleep(2 * time.Second)
	s.Check("Search key", shell("input", "keyevent", "84")...)
	s.Sleep(time.Second)
	s.Check("Type contact", shell("input", "text", contact)...)
	s.Sleep(2 * time.Second)
	s.Check("Enter", shell("input", "keyevent", "66")...)
	s.Sleep(2 * time.Second)
}

func smsScroll(s *suite.State, dir string) {
	openMessagesAndSearch(s, s.Param("contact"))
	swipe := shell("input", "swipe", "500", "500", "500", "1600")
	if dir == "up" {
		s.Printf("Scrolling up to older messages...\n")
	} else {
		swipe = shell("input", "swipe", "500", "1600", "500", "500")
		s.Printf("Scrolling down to newer messages...\n")
	}
	for i := 0; i < 3; i++ {
		s.Check("Scroll "+dir, swipe...)
		s.Sleep(time.Second)
	}
}

func smsBatterySaver(s *suite.State) {
	number := s.Param("number")
	s.Printf("[⚡] Enabling battery saver...\n")
	s.Check("Battery saver on", shell("settings", "put", "global", "low_power", "1")...)
	defer s.Check("Battery saver off", shell("settings", "put", "global", "low_power", "0")...)
	s.Sleep(2 * time.Second)
	sendSMS(s, number, "Test SMS with Battery Saver mode ON.", "TC17", "Send SMS with Battery Saver mode ON")
}

func smsSpam(s *suite.State) {
	number := s.Param("number")
	for i := 1; i <= 5; i++ {
		sendSMS(s, number, fmt.Sprintf("Spam message #%d", i), fmt.Sprintf("TC39_%d", i), "Send repeated messages to same number")
		s.Sleep(time.Second)
	}
}
