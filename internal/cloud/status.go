package cloud

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VMStatus is the Cloud Director power/deployment status of a VM.
type VMStatus int

const (
	StatusFailedCreation        VMStatus = -1
	StatusUnresolved            VMStatus = 1
	StatusResolved              VMStatus = 2
	StatusDeployed              VMStatus = 3
	StatusPoweredOn             VMStatus = 4
	StatusWaitingForInput       VMStatus = 5
	StatusUnknown               VMStatus = 6
	StatusUnrecognized          VMStatus = 7
	StatusPoweredOff            VMStatus = 8
	StatusInconsistentState     VMStatus = 9
	StatusMixed                 VMStatus = 10
	StatusDescriptorPending     VMStatus = 11
	StatusCopyingContents       VMStatus = 12
	StatusDiskContentPending    VMStatus = 13
	StatusQuarantined           VMStatus = 14
	StatusQuarantinedExpired    VMStatus = 15
	StatusRejected              VMStatus = 16
	StatusTransferTimeout       VMStatus = 17
	StatusVAppUndeployed        VMStatus = 18
	StatusVAppPartiallyDeployed VMStatus = 19
	StatusPartiallyPoweredOff   VMStatus = 20
	StatusPartiallySuspended    VMStatus = 21
)

var statusNames = map[VMStatus]string{
	StatusFailedCreation:        "FAILED_CREATION",
	StatusUnresolved:            "UNRESOLVED",
	StatusResolved:              "RESOLVED",
	StatusDeployed:              "DEPLOYED",
	StatusPoweredOn:             "POWERED_ON",
	StatusWaitingForInput:       "WAITING_FOR_INPUT",
	StatusUnknown:               "UNKNOWN",
	StatusUnrecognized:          "UNRECOGNIZED",
	StatusPoweredOff:            "POWERED_OFF",
	StatusInconsistentState:     "INCONSISTENT_STATE",
	StatusMixed:                 "MIXED",
	StatusDescriptorPending:     "DESCRIPTOR_PENDING",
	StatusCopyingContents:       "COPYING_CONTENTS",
	StatusDiskContentPending:    "DISK_CONTENT_PENDING",
	StatusQuarantined:           "QUARANTINED",
	StatusQuarantinedExpired:    "QUARANTINED_EXPIRED",
	StatusRejected:              "REJECTED",
	StatusTransferTimeout:       "TRANSFER_TIMEOUT",
	StatusVAppUndeployed:        "VAPP_UNDEPLOYED",
	StatusVAppPartiallyDeployed: "VAPP_PARTIALLY_DEPLOYED",
	StatusPartiallyPoweredOff:   "PARTIALLY_POWERED_OFF",
	StatusPartiallySuspended:    "PARTIALLY_SUSPENDED",
}

var statusByName = func() map[string]VMStatus {
	m := make(map[string]VMStatus, len(statusNames))
	for k, v := range statusNames {
		m[v] = k
	}
	return m
}()

func (s VMStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "STATUS(" + strconv.Itoa(int(s)) + ")"
}

// ParseVMStatus accepts either a status name ("POWERED_ON") or its numeric code ("4").
func ParseVMStatus(raw string) (VMStatus, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if st, ok := statusByName[s]; ok {
		return st, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := statusNames[VMStatus(n)]; ok {
			return VMStatus(n), nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown vm status %q", raw)
}

// UnmarshalJSON decodes both string and numeric encodings.
func (s *VMStatus) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		st, err := ParseVMStatus(v)
		if err != nil {
			return err
		}
		*s = st
	case float64:
		st, err := ParseVMStatus(strconv.Itoa(int(v)))
		if err != nil {
			return err
		}
		*s = st
	case nil:
		*s = StatusUnknown
	default:
		return fmt.Errorf("unsupported vm status %v", raw)
	}
	return nil
}

func (s VMStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
