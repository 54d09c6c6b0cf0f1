// Package steer turns a track center estimate into servo and motor duty cycles.
package steer

// Gains are the PID coefficients.
type Gains struct {
	Kp float32 `yaml:"kp"`
	Ki float32 `yaml:"ki"`
	Kd float32 `yaml:"kd"`
}

// PID computes the next turn command in incremental (velocity) form:
//
//	turn = turnPrev - Kp*(err-errPrev) - Ki*(err+errPrev)/2 - Kd*(err-2*errPrev+errPrev2)
//
// It depends on nothing but its arguments.
func PID(turnPrev, err, errPrev, errPrev2 float32, g Gains) float32 {
	return turnPrev -
		g.Kp*(err-errPrev) -
		g.Ki*(err+errPrev)/2 -
		g.Kd*(err-2*errPrev+errPrev2)
}
