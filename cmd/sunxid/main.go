// Command sunxid maps the sunxi GPIO, PWM and LRADC register blocks and
// serves a small HTTP API to control them:
//
//	curl -d 'pwm config 0 1000000 500000
//	pwm enable 0' http://127.0.0.1:8080/exec
//	curl http://127.0.0.1:8080/pwm/0
//	curl http://127.0.0.1:8080/journal
//
// Applied settings are saved to the state file and restored on start.
package main

import (
	"flag"
	"net"
	"os"
	"time"

	"github.com/BertoldVdb/go-sunxi/logrusconfig"
	"github.com/BertoldVdb/go-sunxi/mmio"
	"github.com/BertoldVdb/go-sunxi/server"
	"github.com/sirupsen/logrus"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:8080", "HTTP listen address")
	stateFile := flag.String("state", "/var/lib/sunxid/state", "File used to persist applied settings, empty to disable")
	script := flag.String("script", "", "Command file executed after restoring the state")
	memDevice := flag.String("mem", mmio.DefaultDevice, "Physical memory device")
	exclusive := flag.Bool("exclusive", true, "Lock the register blocks against other instances")
	lockDir := flag.String("lockdir", mmio.DefaultLockDir, "Directory for the register block lock files")
	saveInterval := flag.Duration("save-interval", 10*time.Second, "Minimum time between state file writes")
	registerPins := flag.Bool("periph", false, "Register all pins with the periph.io gpioreg registry. Drivers using it bypass the command interpreter")
	logrusconfig.InitParam()
	flag.Parse()

	log := logrusconfig.GetLogger(logrus.InfoLevel)

	s, err := server.Open(&server.Config{
		Listen:       *listen,
		StateFile:    *stateFile,
		Script:       *script,
		SaveInterval: *saveInterval,
		Mem: mmio.Options{
			Device:    *memDevice,
			Exclusive: *exclusive,
			LockDir:   *lockDir,
			Logger:    logrusconfig.Subsystem(log, "mmio"),
		},
		RegisterPins: *registerPins,
		Logger:       log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to map registers")
	}

	if err := s.Restore(); err != nil {
		s.Close()
		log.WithError(err).Fatal("Failed to restore state")
	}

	s.HandleSignals()

	err = s.Run(func(addr net.Addr) {
		log.WithField("addr", addr.String()).Info("Ready")
	})
	s.Close()

	if err != nil {
		log.WithError(err).Error("Server failed")
		os.Exit(1)
	}
}
