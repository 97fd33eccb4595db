package notify

import (
	"errors"
	"testing"
	"time"
)

func TestDone(t *testing.T) {
	var sent []string
	n := New(true, 10*time.Second, nil)
	n.send = func(title, message string) error {
		sent = append(sent, title+": "+message)
		return nil
	}

	if n.Done("travelpal", "quick", time.Second) {
		t.Error("fast operation should not notify")
	}
	if !n.Done("travelpal", "Your trip to Hanoi is ready", 12*time.Second) {
		t.Error("slow operation should notify")
	}
	if len(sent) != 1 || sent[0] != "travelpal: Your trip to Hanoi is ready" {
		t.Errorf("sent = %v", sent)
	}

	n.Enabled = false
	if n.Done("travelpal", "off", time.Minute) {
		t.Error("disabled notifier should not notify")
	}

	var nilNotifier *Notifier
	if nilNotifier.Done("x", "y", time.Hour) {
		t.Error("nil notifier should not notify")
	}
}

func TestDoneSendFailure(t *testing.T) {
	n := New(true, 0, nil)
	n.send = func(string, string) error { return errors.New("no dbus") }
	if n.Done("t", "m", time.Second) {
		t.Error("failed send should report false")
	}
}
