package launch_ctl

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ttacon/chalk"
)

// SensorPacket is one robot-side UDP datagram:
// "[t,]has_target,x,y,heading_deg,tx_deg,rpm,indexer_deg,volts".
type SensorPacket struct {
	T          float64
	HasTarget  bool
	Pose       Pose2D
	Offset     float64
	RPM        float64
	IndexerDeg float64
	Volts      float64
}

// RunLive starts the fixed-rate control loop. It returns nil when ctx is
// cancelled.
func RunLive(ctx context.Context, cfg AppConfig) error {
	if cfg.Hz <= 0 {
		return errors.New("hz must be > 0")
	}
	if !cfg.Sim.Enabled && cfg.Live.UDPAddr == "" {
		return errors.New("live.udp_addr must be set unless sim.enabled")
	}

	tuning := cfg.Tuning
	if cfg.TuningFile != "" {
		p, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return err
		}
		tuning = p
	}
	if err := tuning.Validate(); err != nil {
		return errors.Wrap(err, "tuning")
	}
	store := NewTuningStore(tuning)

	var logger *log.Logger
	if cfg.Log.Transitions {
		logger = log.New(os.Stdout, "", log.Ltime|log.Lmicroseconds)
	}

	var (
		sim    *SimRobot
		src    *liveSource
		pose   PoseSource
		chs    Chassis
		sensor *liveStore
	)
	if cfg.Sim.Enabled {
		sim = NewSimRobot(cfg.Sim, store)
		pose, chs = sim, sim
	} else {
		sensor = &liveStore{}
		conn, err := startUDPListener(cfg.Live, sensor)
		if err != nil {
			return err
		}
		defer conn.Close()
		src = newLiveSource(cfg.Tracker, cfg.Live.StaleSeconds)
		pose, chs = src, relayChassis{}
	}

	shooter := NewShooter(store, NewPoseRangeProvider(store, pose), chs, logger)

	commands := make(chan Command, 32)
	if cfg.Commands.UDPAddr != "" {
		conn, err := startCommandListener(cfg.Commands, cfg.Alliance, commands)
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	sender, err := NewOutputSender(cfg.Output.UDPAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = sender.Close()
	}()
	viz, err := StartViz(cfg.Viz)
	if err != nil {
		return err
	}
	defer func() {
		_ = viz.Close()
	}()

	dtTarget := 1.0 / cfg.Hz
	t0 := time.Now()
	var lastSeq uint64
	var last SensorPacket

	for {
		now := time.Now()
		simT := now.Sub(t0).Seconds()

		drainCommands(commands, shooter, store, cfg.TuningFile)

		var in Sensors
		if sim != nil {
			in = sim.Sensors(simT)
		} else {
			pkt, seq := sensor.Snapshot()
			fresh := seq != lastSeq
			if fresh {
				lastSeq = seq
				last = pkt
			}
			wasStale := src.Stale()
			in = src.update(simT, last, fresh)
			if stale := src.Stale(); stale != wasStale && lastSeq > 0 {
				if stale {
					log.Print(chalk.Yellow.Color(fmt.Sprintf("sensor link stale at %.3f s", simT)))
				} else {
					log.Print(chalk.Green.Color(fmt.Sprintf("sensor link up at %.3f s", simT)))
				}
			}
		}

		out := shooter.Tick(in)
		if sim != nil {
			sim.Apply(out)
		}
		sender.Send(out)

		tm := shooter.Snapshot()
		viz.Update(tm)

		if cfg.Log.Enabled {
			fmt.Printf(
				"%8.3f mode=%-10s fly(%-11s rpm=%6.0f tgt=%6.0f pwr=%.3f) "+
					"idx(%-6s ang=%6.1f err=%+6.1f pwr=%+.3f) "+
					"burst(%-8s shot=%d fired=%d) range=%.2f zone=%s\n",
				tm.T,
				tm.Mode,
				tm.Launcher,
				tm.MeasuredRPM,
				tm.TargetRPM,
				tm.FlywheelPower,
				tm.Indexer,
				tm.IndexerAngle,
				tm.IndexerError,
				tm.IndexerPower,
				tm.Stage,
				tm.Shot,
				tm.ShotsFired,
				tm.Range,
				tm.Zone,
			)
		}

		elapsed := time.Since(now).Seconds()
		sleep := mathMax(0, dtTarget-elapsed)
		select {
		case <-ctx.Done():
			shooter.Stop()
			sender.Send(shooter.Tick(Sensors{T: time.Since(t0).Seconds()}))
			return nil
		case <-time.After(time.Duration(sleep * float64(time.Second))):
		}
	}
}

func drainCommands(ch <-chan Command, s *Shooter, store *TuningStore, tuningFile string) {
	for {
		select {
		case cmd := <-ch:
			if err := cmd.Apply(s, store, tuningFile); err != nil {
				log.Print(chalk.Red.Color(fmt.Sprintf("command %s: %v", cmd.Kind, err)))
			}
		default:
			return
		}
	}
}

type liveStore struct {
	mu   sync.RWMutex
	last SensorPacket
	seq  uint64
}

// Update stores the latest packet and advances the sequence counter.
func (s *liveStore) Update(pkt SensorPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = pkt
	s.seq++
}

// Snapshot returns the most recent packet and its sequence number.
func (s *liveStore) Snapshot() (SensorPacket, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.seq
}

// liveSource is the PoseSource fed from sensor packets. The heading
// offset goes through a TargetTracker so short tag dropouts do not
// abort an alignment. Once no packet has arrived for staleAfter seconds
// the link counts as lost: no pose, zero flywheel speed and an invalid
// indexer angle.
type liveSource struct {
	tracker    *TargetTracker
	staleAfter float64

	pose      Pose2D
	hasPose   bool
	track     TargetTrack
	lastFresh float64
	everFresh bool
	stale     bool
}

const defaultStaleSeconds = 0.25

func newLiveSource(cfg TrackerConfig, staleSeconds float64) *liveSource {
	if staleSeconds <= 0 {
		staleSeconds = defaultStaleSeconds
	}
	return &liveSource{tracker: NewTargetTracker(cfg), staleAfter: staleSeconds, stale: true}
}

// update ingests the latest packet at loop time t and returns the
// sensor readings for this tick.
func (l *liveSource) update(t float64, pkt SensorPacket, fresh bool) Sensors {
	if fresh {
		l.lastFresh = t
		l.everFresh = true
	}
	l.stale = !l.everFresh || t-l.lastFresh > l.staleAfter
	if l.stale {
		l.hasPose = false
		l.track = l.tracker.Update(t, false, 0)
		return Sensors{T: t, IndexerDeg: math.NaN()}
	}

	l.pose = pkt.Pose
	l.hasPose = pkt.HasTarget
	l.track = l.tracker.Update(t, fresh && pkt.HasTarget, pkt.Offset)
	return Sensors{T: t, FlywheelRPM: pkt.RPM, IndexerDeg: pkt.IndexerDeg, BatteryVolts: pkt.Volts}
}

// Stale reports whether the sensor link is currently considered lost.
func (l *liveSource) Stale() bool { return l.stale }

// Pose is the last packet pose while the link is up.
func (l *liveSource) Pose() (Pose2D, bool) { return l.pose, l.hasPose }

// Offset is the tracked tag offset.
func (l *liveSource) Offset() (float64, bool) { return l.track.Offset, l.track.Valid }

// relayChassis discards chassis commands. Turn requests reach the robot
// through the TurnRate field of the actuator packet.
type relayChassis struct{}

func (relayChassis) SetTurnRate(float64) {}

func (relayChassis) SetDrivePower(float64, float64, float64) {}

// startUDPListener spawns a goroutine that listens for sensor packets.
func startUDPListener(cfg LiveConfig, store *liveStore) (*net.UDPConn, error) {
	conn, err := listenUDP(cfg.UDPAddr)
	if err != nil {
		return nil, err
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}

	go func() {
		buf := make([]byte, bufSize)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			pkt, err := parseSensorPacket(buf[:n])
			if err != nil {
				continue
			}
			store.Update(pkt)
		}
	}()

	return conn, nil
}

// startCommandListener forwards operator command datagrams to out.
// Commands arriving while out is full are dropped.
func startCommandListener(cfg CommandConfig, fallback Alliance, out chan<- Command) (*net.UDPConn, error) {
	conn, err := listenUDP(cfg.UDPAddr)
	if err != nil {
		return nil, err
	}

	go func() {
		buf := make([]byte, 512)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			for _, line := range strings.Split(string(buf[:n]), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				cmd, err := ParseCommand(line, fallback)
				if err != nil {
					log.Print(chalk.Red.Color(fmt.Sprintf("bad command %q: %v", line, err)))
					continue
				}
				select {
				case out <- cmd:
				default:
				}
			}
		}
	}()

	return conn, nil
}

func listenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %q", addr)
	}
	return conn, nil
}

// parseSensorPacket parses CSV payloads into SensorPacket values. The
// leading timestamp is optional.
func parseSensorPacket(b []byte) (SensorPacket, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return SensorPacket{}, errors.New("empty payload")
	}

	parts := strings.Split(s, ",")
	if len(parts) != 8 && len(parts) != 9 {
		return SensorPacket{}, errors.Errorf("expected 8 or 9 fields, got %d", len(parts))
	}

	var pkt SensorPacket
	idx := 0
	if len(parts) == 9 {
		t, err := parseF64(parts[0])
		if err != nil {
			return SensorPacket{}, errors.Wrap(err, "t")
		}
		pkt.T = t
		idx = 1
	}

	hasTarget, err := parseBoolLoose(parts[idx])
	if err != nil {
		return SensorPacket{}, errors.Wrap(err, "has_target")
	}
	pkt.HasTarget = hasTarget

	names := []string{"x", "y", "heading", "tx", "rpm", "indexer_deg", "volts"}
	values := make([]float64, len(names))
	for i, name := range names {
		v, err := parseF64(parts[idx+1+i])
		if err != nil {
			return SensorPacket{}, errors.Wrap(err, name)
		}
		values[i] = v
	}
	pkt.Pose = Pose2D{X: values[0], Y: values[1], Heading: values[2] * math.Pi / 180.0}
	pkt.Offset = values[3]
	pkt.RPM = values[4]
	pkt.IndexerDeg = values[5]
	pkt.Volts = values[6]
	return pkt, nil
}

// parseF64 parses a float from a CSV field.
func parseF64(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

// parseBoolLoose parses booleans from common telemetry encodings.
func parseBoolLoose(value string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(value))
	switch norm {
	case "1", "true", "yes", "y", "t":
		return true, nil
	case "0", "false", "no", "n", "f":
		return false, nil
	default:
		f, err := strconv.ParseFloat(norm, 64)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

// mathMax returns the larger of a or b.
func mathMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
