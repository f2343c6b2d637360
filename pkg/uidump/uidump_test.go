package uidump

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.google.android.apps.messaging" bounds="[0,0][1080,2340]">
    <node index="0" text="Hello" resource-id="com.google.android.apps.messaging:id/compose_message_text" class="android.widget.EditText" package="com.google.android.apps.messaging" clickable="true" bounds="[42,2100][860,2220]" />
    <node index="1" text="" resource-id="com.google.android.apps.messaging:id/send_message_button_icon" class="android.widget.ImageView" package="com.google.android.apps.messaging" clickable="true" bounds="[880,2110][1040,2210]" />
  </node>
</hierarchy>`

func TestParse(t *testing.T) {
	nodes, err := Parse([]byte(sampleDump))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("Parse() returned %d nodes, want 3", len(nodes))
	}

	want := Node{
		Text:       "Hello",
		ResourceID: "com.google.android.apps.messaging:id/compose_message_text",
		ClassName:  "android.widget.EditText",
		Package:    "com.google.android.apps.messaging",
		Bounds:     Bounds{X1: 42, Y1: 2100, X2: 860, Y2: 2220},
		RawBounds:  "[42,2100][860,2220]",
		Clickable:  true,
		Enabled:    true,
		Depth:      1,
	}
	if diff := cmp.Diff(want, nodes[1]); diff != "" {
		t.Errorf("nodes[1] mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("not xml")); err == nil {
		t.Error("Parse() error = nil, want error")
	}
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		in   string
		want Bounds
	}{
		{"[0,0][1080,2340]", Bounds{0, 0, 1080, 2340}},
		{"[10,20][30,40]", Bounds{10, 20, 30, 40}},
		{"", Bounds{}},
		{"[1,2]", Bounds{}},
	}
	for _, tt := range tests {
		if got := ParseBounds(tt.in); got != tt.want {
			t.Errorf("ParseBounds(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestBoundsCenter(t *testing.T) {
	x, y := Bounds{880, 2110, 1040, 2210}.Center()
	if x != 960 || y != 2160 {
		t.Errorf("Center() = (%d, %d), want (960, 2160)", x, y)
	}
	x, y = Bounds{0, 0, 5, 5}.Center()
	if x != 2 || y != 2 {
		t.Errorf("Center() = (%d, %d), want (2, 2)", x, y)
	}
}

func TestFindSendButton(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []Node
		wantID string
		found  bool
	}{
		{
			name: "resource id",
			nodes: []Node{
				{ResourceID: "app:id/compose", RawBounds: "[0,0][1,1]"},
				{ResourceID: "app:id/Send_Button", RawBounds: "[0,0][10,10]"},
			},
			wantID: "app:id/Send_Button",
			found:  true,
		},
		{
			name: "text",
			nodes: []Node{
				{ResourceID: "app:id/b1", Text: "SEND", RawBounds: "[0,0][10,10]"},
			},
			wantID: "app:id/b1",
			found:  true,
		},
		{
			name: "text must match exactly",
			nodes: []Node{
				{ResourceID: "app:id/b1", Text: "Sending...", RawBounds: "[0,0][10,10]"},
			},
		},
		{
			name: "skips nodes without bounds",
			nodes: []Node{
				{ResourceID: "app:id/send_a"},
				{ResourceID: "app:id/send_b", RawBounds: "[1,1][3,3]"},
			},
			wantID: "app:id/send_b",
			found:  true,
		},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := FindSendButton(tt.nodes)
			if ok != tt.found {
				t.Fatalf("FindSendButton() found = %v, want %v", ok, tt.found)
			}
			if ok && n.ResourceID != tt.wantID {
				t.Errorf("FindSendButton() = %q, want %q", n.ResourceID, tt.wantID)
			}
		})
	}
}
