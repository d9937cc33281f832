// Package circulation implements the 10-compartment lumped hemodynamic
// model. Compartments form a closed loop:
//
//	0 systemic arteries   5 right ventricle
//	1 systemic periphery  6 pulmonary arteries
//	2 systemic veins      7 pulmonary veins
//	3 vena cava           8 left atrium
//	4 right atrium        9 left ventricle
//
// Intrathoracic compartments see the shared pleural pressure; the two
// atrioventricular junctions hard-clamp reverse flow and the two
// ventricular-outflow junctions pass reverse flow through a ten-fold
// resistance.
package circulation

import (
	"github.com/Lex-mmm/sasicu-example/cardiac"
	"github.com/Lex-mmm/sasicu-example/params"
)

// Compartments is the size of the circulatory loop.
const Compartments = 10

// reverseResistanceFactor scales the nominal resistance when a
// ventricular-outflow valve sees a reverse pressure gradient. The valve is a
// diode approximation, not a hard block.
const reverseResistanceFactor = 10

// intrathoracic marks the compartments exposed to pleural pressure.
var intrathoracic = [Compartments]bool{
	0: true, 3: true, 4: true, 5: true,
	6: true, 7: true, 8: true, 9: true,
}

// uvControlled marks the compartments whose unstressed volume is scaled by
// the baroreflex unstressed-volume factor.
var uvControlled = [Compartments]bool{2: true, 3: true}

// Coefficients are the cached hemodynamic constants, recomputed from the
// parameter store after any mutation of cardio_parameters.
type Coefficients struct {
	Elastance  [Compartments]float64 // diastolic/constant elastance row
	Resistance [Compartments]float64
	UVolume    [Compartments]float64
}

// Recache rebuilds the coefficient set from the store.
func Recache(store *params.Store) (Coefficients, error) {
	var c Coefficients

	el, err := store.Vector("cardio_parameters.elastance_min")
	if err != nil {
		return c, err
	}
	re, err := store.Vector("cardio_parameters.resistance")
	if err != nil {
		return c, err
	}
	uv, err := store.Vector("cardio_parameters.uvolume")
	if err != nil {
		return c, err
	}

	copy(c.Elastance[:], el)
	copy(c.Resistance[:], re)
	copy(c.UVolume[:], uv)

	return c, nil
}

// Inputs collects the per-instant quantities the network needs besides the
// compartment volumes.
type Inputs struct {
	Chambers cardiac.ChamberElastances

	// Pleural adds to the pressure of intrathoracic compartments.
	Pleural float64

	// RFactor multiplies the systemic resistances 0..2 (baroreflex
	// resistance control, R_n - deltaR).
	RFactor float64

	// UVFactor scales the unstressed volume of the venous compartments
	// (baroreflex unstressed-volume control, UV_n + deltaUV).
	UVFactor float64
}

// Network evaluates compartment pressures, inter-compartment flows and
// volume derivatives.
type Network struct {
	Coef Coefficients
}

// New creates a network with coefficients cached from the store.
func New(store *params.Store) (*Network, error) {
	coef, err := Recache(store)
	if err != nil {
		return nil, err
	}
	return &Network{Coef: coef}, nil
}

// Pressures computes the compartment pressures for the given volumes.
func (n *Network) Pressures(v *[Compartments]float64, in Inputs) [Compartments]float64 {
	var p [Compartments]float64

	el := n.chamberAwareElastances(in.Chambers)

	for i := 0; i < Compartments; i++ {
		uv := n.Coef.UVolume[i]
		if uvControlled[i] {
			uv *= in.UVFactor
		}
		p[i] = el[i] * (v[i] - uv)
		if intrathoracic[i] {
			p[i] += in.Pleural
		}
	}

	return p
}

// chamberAwareElastances substitutes the time-varying chamber elastances
// into the constant elastance row.
func (n *Network) chamberAwareElastances(ch cardiac.ChamberElastances) [Compartments]float64 {
	el := n.Coef.Elastance
	el[cardiac.RightAtrium] = ch.Ra
	el[cardiac.RightVentricle] = ch.Rv
	el[cardiac.LeftAtrium] = ch.La
	el[cardiac.LeftVentricle] = ch.Lv
	return el
}

// Flows computes the flow from each compartment i to its successor. The
// systemic resistances 0..2 are scaled by the baroreflex resistance factor;
// junction 4 (RA to RV) and 8 (LA to LV) clamp reverse flow to zero;
// junctions 5 (RV to PA) and 9 (LV to aorta) pass reverse flow through a
// ten-fold resistance.
func (n *Network) Flows(p *[Compartments]float64, in Inputs) [Compartments]float64 {
	var f [Compartments]float64

	for i := 0; i < Compartments; i++ {
		next := (i + 1) % Compartments
		grad := p[i] - p[next]

		r := n.Coef.Resistance[i]
		switch {
		case i <= 2:
			r *= in.RFactor
		case i == cardiac.RightAtrium || i == cardiac.LeftAtrium:
			if grad <= 0 {
				continue // AV valve closed
			}
		case i == cardiac.RightVentricle || i == cardiac.LeftVentricle:
			if grad <= 0 {
				r *= reverseResistanceFactor
			}
		}

		f[i] = grad / r
	}

	return f
}

// VolumeDerivatives closes the loop: dV[i] = inflow - outflow, with
// compartment 0 receiving the outflow of compartment 9. The derivatives sum
// to zero, conserving total blood volume.
func (n *Network) VolumeDerivatives(f *[Compartments]float64) [Compartments]float64 {
	var dv [Compartments]float64
	for i := 0; i < Compartments; i++ {
		prev := (i + Compartments - 1) % Compartments
		dv[i] = f[prev] - f[i]
	}
	return dv
}
