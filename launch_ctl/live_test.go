package launch_ctl

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensorPacket(t *testing.T) {
	pkt, err := parseSensorPacket([]byte("12.5,1,1.2,0.8,90,-3.5,2950,45,12.3\n"))
	require.NoError(t, err)
	assert.Equal(t, 12.5, pkt.T)
	assert.True(t, pkt.HasTarget)
	assert.Equal(t, 1.2, pkt.Pose.X)
	assert.Equal(t, 0.8, pkt.Pose.Y)
	assert.InDelta(t, math.Pi/2, pkt.Pose.Heading, 1e-12)
	assert.Equal(t, -3.5, pkt.Offset)
	assert.Equal(t, 2950.0, pkt.RPM)
	assert.Equal(t, 45.0, pkt.IndexerDeg)
	assert.Equal(t, 12.3, pkt.Volts)

	pkt, err = parseSensorPacket([]byte("false, 0, 0, 0, 0, 100, 0, 11.9"))
	require.NoError(t, err)
	assert.False(t, pkt.HasTarget)
	assert.Equal(t, 0.0, pkt.T)
	assert.Equal(t, 100.0, pkt.RPM)
}

func TestParseSensorPacketErrors(t *testing.T) {
	for _, payload := range []string{
		"",
		"1,2,3",
		"maybe,0,0,0,0,0,0,0",
		"1,0,0,0,0,fast,0,0",
		"x,1,0,0,0,0,0,0,0",
	} {
		_, err := parseSensorPacket([]byte(payload))
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestParseBoolLoose(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "TRUE": true, " y ": true, "0": false, "no": false, "0.5": true, "0.0": false} {
		got, err := parseBoolLoose(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"single red", Command{Kind: CmdSingle, Side: AllianceRed}},
		{"single", Command{Kind: CmdSingle, Side: AllianceBlue}},
		{"continuous BLUE", Command{Kind: CmdContinuous, Side: AllianceBlue}},
		{"burst red 3", Command{Kind: CmdBurst, Side: AllianceRed, Shots: 3}},
		{"cancel", Command{Kind: CmdCancel, Side: AllianceBlue}},
		{"  stop  ", Command{Kind: CmdStop, Side: AllianceBlue}},
		{"lock_rpm 3000", Command{Kind: CmdLockRPM, Side: AllianceBlue, Value: 3000}},
		{"lock_dist 2.1", Command{Kind: CmdLockDistance, Side: AllianceBlue, Value: 2.1}},
		{"stop_launcher", Command{Kind: CmdStopLauncher, Side: AllianceBlue}},
		{"idx_right", Command{Kind: CmdIndexerRight, Side: AllianceBlue}},
		{"idx_left", Command{Kind: CmdIndexerLeft, Side: AllianceBlue}},
		{"idx_power -0.3", Command{Kind: CmdIndexerPower, Side: AllianceBlue, Value: -0.3}},
		{"fly_power 0.5", Command{Kind: CmdLauncherPower, Side: AllianceBlue, Value: 0.5}},
		{"reload", Command{Kind: CmdReload, Side: AllianceBlue}},
		{"feed_pos 0.15", Command{Kind: CmdFeedPosition, Side: AllianceBlue, Value: 0.15}},
		{"feed_nudge -0.02", Command{Kind: CmdFeedNudge, Side: AllianceBlue, Value: -0.02}},
		{"intake_in", Command{Kind: CmdIntakeIn, Side: AllianceBlue}},
		{"intake_out", Command{Kind: CmdIntakeOut, Side: AllianceBlue}},
		{"intake_stop", Command{Kind: CmdIntakeStop, Side: AllianceBlue}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.line, AllianceBlue)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}

	for _, bad := range []string{"", "fire", "single green", "burst red many", "lock_rpm", "lock_rpm fast", "cancel now", "feed_pos", "intake_in fast"} {
		_, err := ParseCommand(bad, AllianceBlue)
		assert.Error(t, err, bad)
	}
}

func TestCommandApply(t *testing.T) {
	store := NewTuningStore(DefaultTuning())
	s := NewShooter(store, &fakeRange{}, nil, nil)

	require.NoError(t, Command{Kind: CmdLockRPM, Value: 2600}.Apply(s, store, ""))
	s.Tick(Sensors{T: 0})
	assert.Equal(t, 2600.0, s.Launcher().TargetRPM())

	require.NoError(t, Command{Kind: CmdBurst, Side: AllianceRed, Shots: 2}.Apply(s, store, ""))
	s.Tick(Sensors{T: 0.02})
	assert.Equal(t, ShotBurst, s.Mode())
	assert.Equal(t, 2, s.Sequencer().Plan().Shots)

	require.NoError(t, Command{Kind: CmdStop}.Apply(s, store, ""))
	s.Tick(Sensors{T: 0.04})
	assert.Equal(t, ShotIdle, s.Mode())

	require.NoError(t, Command{Kind: CmdIntakeIn}.Apply(s, store, ""))
	out := s.Tick(Sensors{T: 0.06})
	assert.Equal(t, IntakeCollecting, s.Intake().State())
	assert.InDelta(t, 0.9, out.IntakePower, 1e-12)

	require.NoError(t, Command{Kind: CmdIntakeOut}.Apply(s, store, ""))
	out = s.Tick(Sensors{T: 0.08})
	assert.InDelta(t, -0.9, out.IntakePower, 1e-12)

	require.NoError(t, Command{Kind: CmdIntakeStop}.Apply(s, store, ""))
	out = s.Tick(Sensors{T: 0.1})
	assert.Zero(t, out.IntakePower)

	require.NoError(t, Command{Kind: CmdFeedPosition, Value: 0.2}.Apply(s, store, ""))
	out = s.Tick(Sensors{T: 0.12})
	assert.InDelta(t, 0.2, out.FeedPosition, 1e-12)

	require.NoError(t, Command{Kind: CmdFeedNudge, Value: 0.05}.Apply(s, store, ""))
	out = s.Tick(Sensors{T: 0.14})
	assert.InDelta(t, 0.25, out.FeedPosition, 1e-12)

	assert.Error(t, Command{Kind: CmdReload}.Apply(s, store, ""))

	path := writeFile(t, "tuning.json", `{"launcher": {"default_rpm": 3300}}`)
	require.NoError(t, Command{Kind: CmdReload}.Apply(s, store, path))
	assert.Equal(t, 3300.0, store.Current().Launcher.DefaultRPM)

	assert.Error(t, Command{Kind: CommandKind(99)}.Apply(s, store, ""))
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "lock_dist", CmdLockDistance.String())
	assert.Equal(t, "CommandKind(99)", CommandKind(99).String())
}

func TestFormatActuators(t *testing.T) {
	out := Actuators{T: 1.5, FlywheelPower: 0.5, IndexerPower: -0.25, FeedPosition: 0.2639, TurnRate: -0.1, Turning: true, IntakePower: -0.9}
	assert.Equal(t, "1.500,0.5000,-0.2500,0.2639,-0.1000,1,-0.9000", FormatActuators(out))
}

func TestOutputSenderDelivers(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	sender, err := NewOutputSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	sender.Send(Actuators{T: 2, FlywheelPower: 1})

	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "2.000,1.0000,0.0000,0.0000,0.0000,0,0.0000", string(buf[:n]))
}

func TestOutputSenderWithoutAddress(t *testing.T) {
	sender, err := NewOutputSender("")
	require.NoError(t, err)
	sender.Send(Actuators{})
	assert.NoError(t, sender.Close())

	var missing *OutputSender
	missing.Send(Actuators{})
	assert.NoError(t, missing.Close())
}

func TestCommandListenerForwards(t *testing.T) {
	out := make(chan Command, 4)
	conn, err := startCommandListener(CommandConfig{UDPAddr: "127.0.0.1:0"}, AllianceRed, out)
	require.NoError(t, err)
	defer conn.Close()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("single\nbogus\nlock_rpm 2500\n"))
	require.NoError(t, err)

	var got []Command
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case cmd := <-out:
			got = append(got, cmd)
		case <-deadline:
			t.Fatalf("received %d commands", len(got))
		}
	}
	assert.Equal(t, Command{Kind: CmdSingle, Side: AllianceRed}, got[0])
	assert.Equal(t, Command{Kind: CmdLockRPM, Side: AllianceRed, Value: 2500}, got[1])
}

var _ Chassis = relayChassis{}

func TestRelayChassisIgnoresCommands(t *testing.T) {
	var c Chassis = relayChassis{}
	c.SetTurnRate(0.5)
	c.SetDrivePower(1, 1, 1)
	assert.Equal(t, relayChassis{}, c)
}

func TestLiveStoreSequence(t *testing.T) {
	store := &liveStore{}
	_, seq := store.Snapshot()
	assert.Zero(t, seq)

	store.Update(SensorPacket{RPM: 100})
	store.Update(SensorPacket{RPM: 200})
	pkt, seq := store.Snapshot()
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, 200.0, pkt.RPM)
}

func TestLiveSourceHoldsOffsetThroughDropout(t *testing.T) {
	src := newLiveSource(TrackerConfig{Alpha: 0.5, HoldSeconds: 0.3}, 0.25)

	pkt := SensorPacket{HasTarget: true, Pose: Pose2D{X: 1, Y: 2}, Offset: 8}
	src.update(0, pkt, true)
	off, ok := src.Offset()
	assert.True(t, ok)
	assert.Equal(t, 8.0, off)

	src.update(0.02, SensorPacket{HasTarget: true, Offset: 4}, true)
	off, _ = src.Offset()
	assert.Equal(t, 6.0, off)

	// no fresh packet: the last estimate is held inside the window
	src.update(0.2, SensorPacket{HasTarget: true, Offset: 4}, false)
	off, ok = src.Offset()
	assert.True(t, ok)
	assert.Equal(t, 6.0, off)

	src.update(0.5, SensorPacket{HasTarget: true, Offset: 4}, false)
	_, ok = src.Offset()
	assert.False(t, ok)

	// reacquiring restarts the filter at the raw reading
	src.update(0.6, SensorPacket{HasTarget: true, Offset: -2}, true)
	off, ok = src.Offset()
	assert.True(t, ok)
	assert.Equal(t, -2.0, off)

	pose, ok := src.Pose()
	assert.True(t, ok)
	assert.Equal(t, Pose2D{}, pose)
}

func TestLiveSourceDropsStaleLink(t *testing.T) {
	src := newLiveSource(TrackerConfig{Alpha: 0.5, HoldSeconds: 0.3}, 0.25)
	rng := NewPoseRangeProvider(NewStaticTuning(DefaultTuning()), src)

	in := src.update(0, SensorPacket{}, false)
	assert.True(t, src.Stale())
	assert.False(t, rng.HasTarget())
	assert.True(t, math.IsNaN(in.IndexerDeg))

	pkt := SensorPacket{HasTarget: true, Pose: Pose2D{X: 1.8, Y: 1.8288}, Offset: 3, RPM: 3000, IndexerDeg: 60, Volts: 12.4}
	in = src.update(0.1, pkt, true)
	assert.False(t, src.Stale())
	assert.Equal(t, Sensors{T: 0.1, FlywheelRPM: 3000, IndexerDeg: 60, BatteryVolts: 12.4}, in)
	_, ok := rng.RangeToGoal(AllianceRed)
	assert.True(t, ok)

	// inside the window the last packet still counts
	in = src.update(0.3, pkt, false)
	assert.False(t, src.Stale())
	assert.Equal(t, 3000.0, in.FlywheelRPM)
	assert.True(t, rng.HasTarget())

	in = src.update(10, pkt, false)
	assert.True(t, src.Stale())
	assert.False(t, rng.HasTarget())
	_, ok = rng.RangeToGoal(AllianceRed)
	assert.False(t, ok)
	_, ok = src.Offset()
	assert.False(t, ok)
	assert.Zero(t, in.FlywheelRPM)
	assert.Zero(t, in.BatteryVolts)
	assert.True(t, math.IsNaN(in.IndexerDeg))

	in = src.update(10.02, pkt, true)
	assert.False(t, src.Stale())
	assert.True(t, rng.HasTarget())
	assert.Equal(t, 3000.0, in.FlywheelRPM)
}

func TestStaleSensorsStopFiring(t *testing.T) {
	tune := NewStaticTuning(DefaultTuning())
	src := newLiveSource(TrackerConfig{Alpha: 0, HoldSeconds: 0.3}, 0.25)
	s := NewShooter(tune, NewPoseRangeProvider(tune, src), nil, nil)

	pkt := SensorPacket{HasTarget: true, Pose: Pose2D{X: 1.8, Y: 1.8288}, RPM: 0, IndexerDeg: 0}
	s.RequestSingleShot(AllianceRed)
	s.Tick(src.update(0, pkt, true))
	target := s.Launcher().TargetRPM()
	require.Positive(t, target)

	// the robot reports the wheel at speed, then the link goes silent
	pkt.RPM = target
	s.Tick(src.update(0.02, pkt, true))
	for ti := 0.5; ti < 3; ti += 0.02 {
		s.Tick(src.update(ti, pkt, false))
	}
	assert.Zero(t, s.Launcher().MeasuredRPM())
	assert.False(t, s.Launcher().AtSpeed())
	assert.Zero(t, s.Sequencer().ShotsFired())
}

func TestTargetTrackerRate(t *testing.T) {
	tr := NewTargetTracker(TrackerConfig{Alpha: 0, HoldSeconds: 1})
	tr.Update(0, true, 10)
	track := tr.Update(0.5, true, 5)
	assert.True(t, track.Valid)
	assert.Equal(t, 5.0, track.Offset)
	assert.Equal(t, -10.0, track.Rate)

	track = tr.Update(0.7, false, 0)
	assert.True(t, track.Valid)
	assert.InDelta(t, 0.2, track.Age, 1e-12)

	never := NewTargetTracker(TrackerConfig{HoldSeconds: 1})
	track = never.Update(0, false, 0)
	assert.False(t, track.Valid)
}

func TestRunLiveRejectsBadConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Hz = 0
	assert.Error(t, RunLive(context.Background(), cfg))

	cfg = DefaultAppConfig()
	assert.ErrorContains(t, RunLive(context.Background(), cfg), "udp_addr")
}

func TestRunLiveSimulatedStopsOnCancel(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Hz = 200
	cfg.Sim.Enabled = true

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunLive(ctx, cfg) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunLive did not return after cancel")
	}
}
