package input

import (
	"fmt"
	"sync"

	"github.com/tarm/serial"

	"github.com/skeetbot/skeet/internal/log"
)

// SerialSink drives a microcontroller that emulates a USB keyboard and
// mouse, over a newline-delimited command protocol:
//
//	move:<x>,<y>
//	btn_down:<button>    btn_up:<button>
//	key_down:<key>       key_up:<key>       key_tap:<key>
//	scroll:<steps>
//
// Hardware-injected input is indistinguishable from a physical device,
// which some capture targets require.
type SerialSink struct {
	mu   sync.Mutex
	port *serial.Port
}

// OpenSerialSink opens the device at name (e.g. /dev/ttyUSB0, COM3).
func OpenSerialSink(name string, baud int) (*SerialSink, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     baud,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return &SerialSink{port: port}, nil
}

func (s *SerialSink) send(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.port.Write([]byte(fmt.Sprintf(format, args...))); err != nil {
		log.Warn("serial write failed", "error", err)
	}
}

func (s *SerialSink) MoveTo(x, y int)          { s.send("move:%d,%d\n", x, y) }
func (s *SerialSink) ButtonDown(button string) { s.send("btn_down:%s\n", button) }
func (s *SerialSink) ButtonUp(button string)   { s.send("btn_up:%s\n", button) }
func (s *SerialSink) KeyDown(key string)       { s.send("key_down:%s\n", key) }
func (s *SerialSink) KeyUp(key string)         { s.send("key_up:%s\n", key) }
func (s *SerialSink) Tap(key string)           { s.send("key_tap:%s\n", key) }
func (s *SerialSink) Scroll(steps int)         { s.send("scroll:%d\n", steps) }

func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
