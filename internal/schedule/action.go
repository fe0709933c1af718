package schedule

import (
	"fmt"

	"vmsched/internal/cloud"
)

// Action is the power transition a tag requests.
type Action int

const (
	PowerUp Action = iota + 1
	PowerDown
)

// Recognized metadata keys.
const (
	KeyPowerUp   = "ibm.manage.up"
	KeyPowerDown = "ibm.manage.down"
)

// ActionForKey maps a metadata key to its action.
func ActionForKey(key string) (Action, bool) {
	switch key {
	case KeyPowerUp:
		return PowerUp, true
	case KeyPowerDown:
		return PowerDown, true
	default:
		return 0, false
	}
}

func (a Action) String() string {
	switch a {
	case PowerUp:
		return "power-up"
	case PowerDown:
		return "power-down"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Key returns the metadata key that carries a.
func (a Action) Key() string {
	switch a {
	case PowerUp:
		return KeyPowerUp
	case PowerDown:
		return KeyPowerDown
	default:
		return ""
	}
}

// Satisfied reports whether a VM in status st already is where a would put it.
func (a Action) Satisfied(st cloud.VMStatus) bool {
	switch a {
	case PowerUp:
		return st == cloud.StatusPoweredOn
	case PowerDown:
		return st == cloud.StatusPoweredOff
	default:
		return false
	}
}
