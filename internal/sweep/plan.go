// Package sweep enumerates BLE DTM link trials across a parameter grid and
// drives the two device sessions and the attenuator through each one,
// recording a packet error rate per direction per trial.
package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// Params is one point of the sweep grid.
type Params struct {
	PacketLength int
	NumPackets   int
	PHY          int
	TxPower      int // dBm
	Channel      int
}

// Plan is the expanded sweep: the parameter value lists in their evaluation
// order plus the attenuation schedule each combination is crossed with.
type Plan struct {
	PacketLengths []int
	NumPackets    []int
	PHYs          []int
	TxPowers      []int
	Channels      []int
	Attens        []int
}

// PlanSpec carries the raw comma-separated CLI strings a plan is parsed
// from. Attens overrides Step when non-empty.
type PlanSpec struct {
	PacketLengths string
	NumPackets    string
	PHYs          string
	TxPowers      string
	Channels      string
	Attens        string
	Step          int
}

// ParsePlan expands a PlanSpec. Malformed numeric entries are reported
// immediately; nothing validates value ranges, matching the bench's
// fail-at-the-hardware behaviour for out-of-range settings.
func ParsePlan(spec PlanSpec) (Plan, error) {
	var plan Plan
	var err error

	if plan.PacketLengths, err = parseIntList(spec.PacketLengths); err != nil {
		return Plan{}, fmt.Errorf("packet lengths: %w", err)
	}
	if plan.NumPackets, err = parseIntList(spec.NumPackets); err != nil {
		return Plan{}, fmt.Errorf("packet counts: %w", err)
	}
	if plan.PHYs, err = parseIntList(spec.PHYs); err != nil {
		return Plan{}, fmt.Errorf("phys: %w", err)
	}
	if plan.TxPowers, err = parseIntList(spec.TxPowers); err != nil {
		return Plan{}, fmt.Errorf("tx powers: %w", err)
	}
	if plan.Channels, err = parseIntList(spec.Channels); err != nil {
		return Plan{}, fmt.Errorf("channels: %w", err)
	}

	if spec.Attens != "" {
		if plan.Attens, err = parseIntList(spec.Attens); err != nil {
			return Plan{}, fmt.Errorf("attens: %w", err)
		}
	} else {
		plan.Attens = DeriveAttens(spec.Step)
	}
	return plan, nil
}

// parseIntList parses a comma-separated list of integers.
func parseIntList(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

// DeriveAttens builds the default attenuation schedule: 20 dB up to but not
// including 90 dB in increments of step, with the 90 dB maximum always
// appended as the final point. A step of 0 yields the fixed schedule
// 20, 70, 90 — existing result sets depend on that schedule, so it stays.
func DeriveAttens(step int) []int {
	var attens []int
	switch {
	case step == 0:
		attens = []int{20, 70}
	case step > 0:
		for a := 20; a < 90; a += step {
			attens = append(attens, a)
		}
	}
	return append(attens, 90)
}

// Combos enumerates every parameter combination exactly once, in the fixed
// nesting order packet length, packet count, PHY, TX power, channel.
func (p Plan) Combos() []Params {
	combos := make([]Params, 0,
		len(p.PacketLengths)*len(p.NumPackets)*len(p.PHYs)*len(p.TxPowers)*len(p.Channels))
	for _, pktLen := range p.PacketLengths {
		for _, numPkt := range p.NumPackets {
			for _, phy := range p.PHYs {
				for _, txPower := range p.TxPowers {
					for _, chn := range p.Channels {
						combos = append(combos, Params{
							PacketLength: pktLen,
							NumPackets:   numPkt,
							PHY:          phy,
							TxPower:      txPower,
							Channel:      chn,
						})
					}
				}
			}
		}
	}
	return combos
}
