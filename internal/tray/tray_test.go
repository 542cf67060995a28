package tray

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/kathakali/internal/app"
)

func TestStatusTitle(t *testing.T) {
	tests := []struct {
		name   string
		report app.Report
		want   string
	}{
		{name: "tracking with face", report: app.Report{Status: app.StatusTracking, FaceVisible: true}, want: "Status: tracking"},
		{name: "tracking without face", report: app.Report{Status: app.StatusTracking}, want: "Status: no face"},
		{name: "loading", report: app.Report{Status: app.StatusLoading}, want: "Status: starting..."},
		{name: "camera failed", report: app.Report{Status: app.StatusCameraFailed}, want: "Status: camera unavailable"},
		{name: "model failed", report: app.Report{Status: app.StatusModelFailed}, want: "Status: face model unavailable"},
		{name: "idle", report: app.Report{Status: app.StatusIdle}, want: "Status: idle"},
		{name: "stopped", report: app.Report{Status: app.StatusStopped}, want: "Status: stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusTitle(tt.report); got != tt.want {
				t.Errorf("statusTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_Toggle(t *testing.T) {
	tr := New(true)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("expected tray to be enabled after two toggles")
	}
}

func TestTray_SetReport(t *testing.T) {
	tr := New(true)
	tr.SetReport(app.Report{Status: app.StatusIdle, Enabled: false})

	if tr.IsEnabled() {
		t.Error("report should drive the enabled state")
	}
}

func TestTray_Watch(t *testing.T) {
	tr := New(false)

	var mu sync.Mutex
	report := app.Report{Status: app.StatusLoading, Enabled: true}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Watch(ctx, func() app.Report {
			mu.Lock()
			defer mu.Unlock()
			return report
		}, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for !tr.IsEnabled() {
		if time.Now().After(deadline) {
			t.Fatal("Watch never applied the report")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	report = app.Report{Status: app.StatusIdle, Enabled: false}
	mu.Unlock()

	deadline = time.Now().Add(time.Second)
	for tr.IsEnabled() {
		if time.Now().After(deadline) {
			t.Fatal("Watch never applied the second report")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
