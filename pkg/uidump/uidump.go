// Package uidump parses uiautomator window dumps and locates tappable nodes.
package uidump

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

// RemoteDumpPath is where "uiautomator dump" writes on the device.
const RemoteDumpPath = "/sdcard/window_dump.xml"

// Bounds is a screen rectangle in pixels.
type Bounds struct {
	X1, Y1, X2, Y2 int
}

// Center returns the integer midpoint.
func (b Bounds) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Empty reports whether the bounds failed to parse or have no area.
func (b Bounds) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Node is a flattened view hierarchy element.
type Node struct {
	Text        string
	ResourceID  string
	ContentDesc string
	ClassName   string
	Package     string
	Bounds      Bounds
	RawBounds   string
	Clickable   bool
	Enabled     bool
	Depth       int
}

type xmlNode struct {
	Text        string    `xml:"text,attr"`
	ResourceID  string    `xml:"resource-id,attr"`
	ContentDesc string    `xml:"content-desc,attr"`
	Class       string    `xml:"class,attr"`
	Package     string    `xml:"package,attr"`
	Bounds      string    `xml:"bounds,attr"`
	Enabled     string    `xml:"enabled,attr"`
	Clickable   string    `xml:"clickable,attr"`
	Children    []xmlNode `xml:"node"`
}

// Parse flattens uiautomator XML into nodes in document order.
func Parse(data []byte) ([]Node, error) {
	var hierarchy struct {
		XMLName xml.Name  `xml:"hierarchy"`
		Nodes   []xmlNode `xml:"node"`
	}

	if err := xml.Unmarshal(data, &hierarchy); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	var nodes []Node
	for _, n := range hierarchy.Nodes {
		nodes = flatten(n, 0, nodes)
	}
	return nodes, nil
}

func flatten(n xmlNode, depth int, out []Node) []Node {
	out = append(out, Node{
		Text:        n.Text,
		ResourceID:  n.ResourceID,
		ContentDesc: n.ContentDesc,
		ClassName:   n.Class,
		Package:     n.Package,
		Bounds:      ParseBounds(n.Bounds),
		RawBounds:   n.Bounds,
		Clickable:   n.Clickable == "true",
		Enabled:     n.Enabled != "false",
		Depth:       depth,
	})
	for _, child := range n.Children {
		out = flatten(child, depth+1, out)
	}
	return out
}

var boundsNumber = regexp.MustCompile(`-?\d+`)

// ParseBounds parses "[x1,y1][x2,y2]". Malformed input yields zero Bounds.
func ParseBounds(s string) Bounds {
	coords := boundsNumber.FindAllString(s, -1)
	if len(coords) != 4 {
		return Bounds{}
	}
	var v [4]int
	for i, c := range coords {
		v[i], _ = strconv.Atoi(c)
	}
	return Bounds{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
}

// Find returns the first node matching pred.
func Find(nodes []Node, pred func(Node) bool) (Node, bool) {
	for _, n := range nodes {
		if pred(n) {
			return n, true
		}
	}
	return Node{}, false
}

// FindSendButton matches a resource-id containing "send" or the exact text "send".
func FindSendButton(nodes []Node) (Node, bool) {
	return Find(nodes, func(n Node) bool {
		if strings.Contains(strings.ToLower(n.ResourceID), "send") ||
			strings.ToLower(n.Text) == "send" {
			return len(boundsNumber.FindAllString(n.RawBounds, -1)) == 4
		}
		return false
	})
}

// Dump captures the current window hierarchy into localPath and parses it.
func Dump(ctx context.Context, client *adb.Client, localPath string) ([]Node, error) {
	if _, err := client.Shell(ctx, "uiautomator", "dump"); err != nil {
		return nil, fmt.Errorf("uiautomator dump: %w", err)
	}
	if _, err := client.Pull(ctx, RemoteDumpPath, localPath); err != nil {
		return nil, fmt.Errorf("pull window dump: %w", err)
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read window dump: %w", err)
	}
	return Parse(data)
}

// Tap sends an input tap at the node's center.
func Tap(ctx context.Context, client *adb.Client, n Node) error {
	x, y := n.Center()
	_, err := client.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Center is a shortcut for n.Bounds.Center.
func (n Node) Center() (int, int) {
	return n.Bounds.Center()
}
