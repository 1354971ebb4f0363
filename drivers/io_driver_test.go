//go:build !tinygo

package drivers

import "testing"

func TestMapAllLineDrivers(t *testing.T) {
	mapped := MapAllLineDrivers()

	for _, name := range []string{"gpio", "mcpio"} {
		t.Run(name, func(t *testing.T) {
			driver, found := mapped[name]
			if !found {
				t.Fatalf("driver %s not mapped", name)
			}
			if driver.String() != name {
				t.Errorf("got %s want %s", driver.String(), name)
			}
			if driver.IsReady() {
				t.Errorf("%s ready before Setup", name)
			}
		})
	}
}

func TestLineBeforeSetup(t *testing.T) {
	t.Run("GpIO", func(t *testing.T) {
		gpio := GpIO{}
		_, err := gpio.Line(4, LineModePushPull, false)
		if err == nil {
			t.Error("expected error from driver that is not set up")
		}
		if err := gpio.Close(); err != nil {
			t.Errorf("close of idle driver: %v", err)
		}
	})

	t.Run("McpIO", func(t *testing.T) {
		mcp := McpIO{BusNo: 1, DevNo: 0}
		_, err := mcp.Line(3, LineModePullUp, false)
		if err == nil {
			t.Error("expected error from driver that is not set up")
		}
		if err := mcp.Close(); err != nil {
			t.Errorf("close of idle driver: %v", err)
		}
	})
}

func TestLineModeString(t *testing.T) {
	if got := LineModePullUp.String(); got != "pull-up" {
		t.Errorf("got %s want pull-up", got)
	}
	if got := LineModePushPull.String(); got != "push-pull" {
		t.Errorf("got %s want push-pull", got)
	}
}
