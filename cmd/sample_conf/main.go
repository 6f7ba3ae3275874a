package main

import (
	"os"

	"github.com/LeoCommon/odometer/internal/config"
	"github.com/LeoCommon/odometer/pkg/file"
	"github.com/LeoCommon/odometer/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const samplePath = "./config/config.toml"

// sample fills the optional fields so omitempty does not hide them
func sample() *config.MainConfig {
	cf := config.New()

	cf.Client.Name = "car-01"

	cf.Receiver.TargetBaud = 115200
	cf.Receiver.DetectBauds = []int{9600, 38400, 115200}
	cf.Receiver.EnableChip = "gpiochip0"
	cf.Receiver.EnableLine = "GNSS_EN"
	// The odometer only needs RMC, GGA and GSA feed the extra display modes
	cf.Receiver.Features = map[string]uint8{"RMC": 1, "GGA": 1, "GSA": 1, "GSV": 0, "GLL": 0, "VTG": 0}

	cf.Telemetry.Enabled = true
	cf.Telemetry.Broker = "tcp://localhost:1883"
	cf.Telemetry.ClientID = "odometer-car-01"
	cf.Telemetry.Username = "odometer"
	cf.Telemetry.Password = "changeme"

	return cf
}

func main() {
	log.Init(true)

	defaultConfigBytes, err := toml.Marshal(sample())
	if err != nil {
		panic(err)
	}

	if err := os.MkdirAll("./config", 0755); err != nil {
		panic(err)
	}

	if err := file.WriteAtomic(samplePath, defaultConfigBytes); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		panic(err)
	}

	log.Info("sample config written", zap.String("path", samplePath))
}
