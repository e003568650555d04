//go:build tinygo

package main

import (
	"tinygo.org/x/drivers/l293x"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// motorPair drives the two leg motors, one L293D half-bridge pair
// each. The motors face each other across the frame, so moving the
// desk means running them in opposite rotational directions in
// lockstep.
type motorPair struct {
	left  l293x.Device
	right l293x.Device
}

var _ desk.MotionDriver = &motorPair{}

func newMotorPair() *motorPair {
	m := &motorPair{
		left:  l293x.New(pinLeftMotorIn1, pinLeftMotorIn2, pinLeftMotorEn),
		right: l293x.New(pinRightMotorIn1, pinRightMotorIn2, pinRightMotorEn),
	}
	m.left.Configure()
	m.right.Configure()
	return m
}

func (m *motorPair) Raise() {
	m.left.Forward()
	m.right.Backward()
}

func (m *motorPair) Lower() {
	m.left.Backward()
	m.right.Forward()
}

func (m *motorPair) Stop() {
	m.left.Stop()
	m.right.Stop()
}
