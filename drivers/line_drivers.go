//go:build !tinygo

package drivers

func MapAllLineDrivers() map[string]LineDriver {
	drivers := []LineDriver{
		&GpIO{},
		&McpIO{},
	}

	mapped := make(map[string]LineDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}
