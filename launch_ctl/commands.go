package launch_ctl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CommandKind names an operator command.
type CommandKind int

const (
	CmdSingle CommandKind = iota + 1
	CmdContinuous
	CmdBurst
	CmdCancel
	CmdStop
	CmdLockRPM
	CmdLockDistance
	CmdStopLauncher
	CmdIndexerRight
	CmdIndexerLeft
	CmdIndexerPower
	CmdLauncherPower
	CmdReload
	CmdFeedPosition
	CmdFeedNudge
	CmdIntakeIn
	CmdIntakeOut
	CmdIntakeStop
)

var commandNames = map[string]CommandKind{
	"single":        CmdSingle,
	"continuous":    CmdContinuous,
	"burst":         CmdBurst,
	"cancel":        CmdCancel,
	"stop":          CmdStop,
	"lock_rpm":      CmdLockRPM,
	"lock_dist":     CmdLockDistance,
	"stop_launcher": CmdStopLauncher,
	"idx_right":     CmdIndexerRight,
	"idx_left":      CmdIndexerLeft,
	"idx_power":     CmdIndexerPower,
	"fly_power":     CmdLauncherPower,
	"reload":        CmdReload,
	"feed_pos":      CmdFeedPosition,
	"feed_nudge":    CmdFeedNudge,
	"intake_in":     CmdIntakeIn,
	"intake_out":    CmdIntakeOut,
	"intake_stop":   CmdIntakeStop,
}

func (k CommandKind) String() string {
	for name, kind := range commandNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is one parsed operator line.
type Command struct {
	Kind  CommandKind
	Side  Alliance
	Shots int
	Value float64
}

// ParseCommand parses lines such as "single red", "burst blue 3" or
// "lock_rpm 3000". A fire command without a side uses fallback.
func ParseCommand(line string, fallback Alliance) (Command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}
	kind, ok := commandNames[fields[0]]
	if !ok {
		return Command{}, errors.Errorf("unknown command %q", fields[0])
	}
	cmd := Command{Kind: kind, Side: fallback}
	args := fields[1:]

	switch kind {
	case CmdSingle, CmdContinuous, CmdBurst:
		if len(args) > 0 {
			side, err := ParseAlliance(args[0])
			if err != nil {
				return Command{}, err
			}
			cmd.Side = side
			args = args[1:]
		}
		if kind == CmdBurst && len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return Command{}, errors.Wrapf(err, "burst shots %q", args[0])
			}
			cmd.Shots = n
			args = args[1:]
		}
	case CmdLockRPM, CmdLockDistance, CmdIndexerPower, CmdLauncherPower, CmdFeedPosition, CmdFeedNudge:
		if len(args) == 0 {
			return Command{}, errors.Errorf("%s needs a value", kind)
		}
		v, err := parseF64(args[0])
		if err != nil {
			return Command{}, errors.Wrapf(err, "%s value %q", kind, args[0])
		}
		cmd.Value = v
		args = args[1:]
	}
	if len(args) > 0 {
		return Command{}, errors.Errorf("%s: unexpected arguments %v", kind, args)
	}
	return cmd, nil
}

// Apply hands cmd to the shooter. Reload re-reads tuningFile into store.
func (cmd Command) Apply(s *Shooter, store *TuningStore, tuningFile string) error {
	switch cmd.Kind {
	case CmdSingle:
		s.RequestSingleShot(cmd.Side)
	case CmdContinuous:
		s.RequestContinuousFire(cmd.Side)
	case CmdBurst:
		s.RequestBurst(cmd.Side, cmd.Shots)
	case CmdCancel:
		s.CancelFire()
	case CmdStop:
		s.Stop()
	case CmdLockRPM:
		s.LockToRPM(cmd.Value)
	case CmdLockDistance:
		s.LockToDistance(cmd.Value)
	case CmdStopLauncher:
		s.StopLauncher()
	case CmdIndexerRight:
		s.RotateIndexerRight()
	case CmdIndexerLeft:
		s.RotateIndexerLeft()
	case CmdIndexerPower:
		s.SetIndexerManualPower(cmd.Value)
	case CmdLauncherPower:
		s.SetLauncherManualPower(cmd.Value)
	case CmdFeedPosition:
		s.SetFeedPosition(cmd.Value)
	case CmdFeedNudge:
		s.NudgeFeedPosition(cmd.Value)
	case CmdIntakeIn:
		s.CollectIntake()
	case CmdIntakeOut:
		s.EjectIntake()
	case CmdIntakeStop:
		s.StopIntake()
	case CmdReload:
		if tuningFile == "" {
			return errors.New("reload: no tuning_file configured")
		}
		if store == nil {
			return errors.New("reload: tuning is not reloadable")
		}
		return errors.Wrap(store.Reload(tuningFile), "reload")
	default:
		return errors.Errorf("unhandled command %s", cmd.Kind)
	}
	return nil
}
