package sweep

import (
	"fmt"
	"time"

	"github.com/banshee-data/dtmbench/internal/atten"
	"github.com/banshee-data/dtmbench/internal/hci"
	"github.com/banshee-data/dtmbench/internal/monitoring"
	"github.com/banshee-data/dtmbench/internal/timeutil"
)

const (
	// retryBudget is the number of attempts a trial gets before its PER is
	// forced to the worst-case sentinel.
	retryBudget = 2

	// settleDelay follows attenuation changes and device resets.
	settleDelay = 100 * time.Millisecond

	// sentinelPER is recorded for both directions when a trial gives up.
	sentinelPER = 100.0
)

// DeviceSession is the DTM command surface the runner drives on each device
// under test. *hci.Session implements it.
type DeviceSession interface {
	Reset() error
	SetPHY(hci.SetDefaultPHY) error
	SetTxPower(hci.SetTxPower) error
	StartRx(hci.RxTest) error
	StartTx(hci.TxTest) error
	EndTest() (hci.TestEnd, error)
}

// Config wires the runner to its collaborators.
type Config struct {
	Master DeviceSession
	Slave  DeviceSession

	// Attenuator is nil when no programmable attenuator is in the RF path
	// (-rf-switch off); levels are then assumed to be set by hand.
	Attenuator atten.Controller

	Results *ResultWriter

	// Delay is the air time allowed for each direction of a trial.
	Delay time.Duration

	// Clock defaults to the real clock.
	Clock timeutil.Clock
}

// Stats accumulates across a whole sweep.
type Stats struct {
	// MaxPER is the worst directional PER observed, including forced
	// sentinels. Monotonically non-decreasing across trials.
	MaxPER float64

	// Trials is the number of result rows written.
	Trials int

	// GiveUps is the number of trials that exhausted the retry budget.
	GiveUps int
}

// ExceedsLimit reports whether the sweep should fail the run. A limit of 0
// disables the check.
func (s Stats) ExceedsLimit(limit float64) bool {
	return limit != 0 && s.MaxPER > limit
}

// Runner executes an expanded plan serially: one trial at a time, both
// device sessions and the attenuator exclusively owned for the duration.
type Runner struct {
	cfg Config
}

// NewRunner builds a Runner over cfg.
func NewRunner(cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Runner{cfg: cfg}
}

// Run walks every parameter combination in nesting order, every attenuation
// level within it, appending one result row per trial as it completes.
// Collaborator transport errors abort the sweep; rows written so far remain
// in the results file.
func (r *Runner) Run(plan Plan) (Stats, error) {
	var stats Stats
	for _, p := range plan.Combos() {
		for _, attenDB := range plan.Attens {
			start := r.cfg.Clock.Now()

			row, gaveUp, err := r.runTrial(p, attenDB)
			if err != nil {
				return stats, err
			}
			if gaveUp {
				stats.GiveUps++
			}
			if row.PERMaster > stats.MaxPER {
				stats.MaxPER = row.PERMaster
			}
			if row.PERSlave > stats.MaxPER {
				stats.MaxPER = row.PERSlave
			}
			stats.Trials++

			if err := r.cfg.Results.Write(row); err != nil {
				return stats, err
			}
			monitoring.Logf("perMaster: %v perSlave: %v perMax: %v",
				row.PERMaster, row.PERSlave, stats.MaxPER)
			monitoring.Logf("trial took %.0f seconds", r.cfg.Clock.Since(start).Seconds())
		}
	}
	return stats, nil
}

// runTrial measures one (parameters, attenuation) pair, retrying a missing
// packet count up to the budget and forcing the sentinel when it runs out.
func (r *Runner) runTrial(p Params, attenDB int) (ResultRow, bool, error) {
	row := ResultRow{Params: p, Atten: attenDB}
	for attempt := 0; attempt < retryBudget; attempt++ {
		if attempt > 0 {
			monitoring.Logf("retry %d", attempt)
		}
		perSlave, perMaster, ok, err := r.attempt(p, attenDB)
		if err != nil {
			return row, false, err
		}
		if !ok {
			continue
		}
		row.PERSlave = perSlave
		row.PERMaster = perMaster
		return row, false, nil
	}
	monitoring.Logf("tried %d times, giving up", retryBudget)
	row.PERSlave = sentinelPER
	row.PERMaster = sentinelPER
	return row, true, nil
}

// attempt runs the full two-direction protocol once. ok is false when
// either direction's end-test came back without a packet count.
func (r *Runner) attempt(p Params, attenDB int) (perSlave, perMaster float64, ok bool, err error) {
	c := r.cfg
	monitoring.Logf("packetLen: %d, numPackets: %d, phy: %d, atten: %d, txPower: %d, channel: %d",
		p.PacketLength, p.NumPackets, p.PHY, attenDB, p.TxPower, p.Channel)

	if c.Attenuator != nil {
		monitoring.Logf("set attenuation to %d dB", attenDB)
		if err := c.Attenuator.SetAttenuation(attenDB); err != nil {
			return 0, 0, false, fmt.Errorf("set attenuation: %w", err)
		}
	}
	c.Clock.Sleep(settleDelay)

	if err := r.resetBoth(); err != nil {
		return 0, 0, false, err
	}

	monitoring.Logf("set PHY %d", p.PHY)
	if err := c.Master.SetPHY(hci.SetDefaultPHY{PHY: p.PHY}); err != nil {
		return 0, 0, false, fmt.Errorf("set master phy: %w", err)
	}

	monitoring.Logf("set TX power %d dBm", p.TxPower)
	if err := c.Slave.SetTxPower(hci.SetTxPower{Power: p.TxPower}); err != nil {
		return 0, 0, false, fmt.Errorf("set slave tx power: %w", err)
	}
	if err := c.Master.SetTxPower(hci.SetTxPower{Power: p.TxPower}); err != nil {
		return 0, 0, false, fmt.Errorf("set master tx power: %w", err)
	}

	monitoring.Logf("slave to RX, master to TX")
	perSlave, okA, err := r.direction(c.Slave, c.Master, p)
	if err != nil {
		return 0, 0, false, err
	}

	if err := r.resetBoth(); err != nil {
		return 0, 0, false, err
	}

	monitoring.Logf("master to RX, slave to TX")
	perMaster, okB, err := r.direction(c.Master, c.Slave, p)
	if err != nil {
		return 0, 0, false, err
	}

	return perSlave, perMaster, okA && okB, nil
}

// direction runs one half of a trial: rx in receiver test mode, tx
// transmitting the counted burst, then both tests ended with the receiver's
// count turned into a PER percentage.
func (r *Runner) direction(rx, tx DeviceSession, p Params) (per float64, ok bool, err error) {
	if err := rx.StartRx(hci.RxTest{Channel: p.Channel, PHY: p.PHY}); err != nil {
		return 0, false, fmt.Errorf("start rx test: %w", err)
	}
	if err := tx.StartTx(hci.TxTest{
		Channel:      p.Channel,
		PHY:          p.PHY,
		PacketLength: p.PacketLength,
		NumPackets:   p.NumPackets,
	}); err != nil {
		return 0, false, fmt.Errorf("start tx test: %w", err)
	}

	monitoring.Logf("wait %v for the DTM test to complete", r.cfg.Delay)
	r.cfg.Clock.Sleep(r.cfg.Delay)

	if _, err := tx.EndTest(); err != nil {
		return 0, false, fmt.Errorf("end tx test: %w", err)
	}
	end, err := rx.EndTest()
	if err != nil {
		return 0, false, fmt.Errorf("end rx test: %w", err)
	}
	if !end.Reported {
		return 0, false, nil
	}
	return float64(end.ReceivedPackets) / float64(p.NumPackets) * 100, true, nil
}

// resetBoth resets the two devices and lets them settle.
func (r *Runner) resetBoth() error {
	if err := r.cfg.Slave.Reset(); err != nil {
		return fmt.Errorf("reset slave: %w", err)
	}
	if err := r.cfg.Master.Reset(); err != nil {
		return fmt.Errorf("reset master: %w", err)
	}
	r.cfg.Clock.Sleep(settleDelay)
	return nil
}
