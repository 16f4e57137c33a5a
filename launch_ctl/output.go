package launch_ctl

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// OutputSender sends actuator commands over UDP as CSV.
type OutputSender struct {
	conn *net.UDPConn
}

// NewOutputSender creates a UDP sender for the given address. An empty
// address yields a sender that discards everything.
func NewOutputSender(addr string) (*OutputSender, error) {
	if addr == "" {
		return &OutputSender{}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve output addr %q", addr)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial output addr %q", addr)
	}
	return &OutputSender{conn: conn}, nil
}

// Close releases the UDP socket.
func (s *OutputSender) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Send writes FormatActuators(out) as a single datagram.
func (s *OutputSender) Send(out Actuators) {
	if s == nil || s.conn == nil {
		return
	}
	_, _ = s.conn.Write([]byte(FormatActuators(out)))
}

// FormatActuators renders "t,flywheel,indexer,feed,turn,turning,intake".
func FormatActuators(out Actuators) string {
	turning := 0
	if out.Turning {
		turning = 1
	}
	return fmt.Sprintf("%.3f,%.4f,%.4f,%.4f,%.4f,%d,%.4f",
		out.T, out.FlywheelPower, out.IndexerPower, out.FeedPosition, out.TurnRate, turning, out.IntakePower)
}
