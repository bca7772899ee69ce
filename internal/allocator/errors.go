package allocator

import "fmt"

// UnknownSlaveError reports a slave name with no record.
type UnknownSlaveError struct {
	Name string
}

func (e *UnknownSlaveError) Error() string {
	return fmt.Sprintf("no slave found named '%s'", e.Name)
}

// UnknownMasterError reports a master nickname with no record.
type UnknownMasterError struct {
	Nickname string
}

func (e *UnknownMasterError) Error() string {
	return fmt.Sprintf("no master found with nickname '%s'", e.Nickname)
}

// NoAllocationError means the slave is enabled but no master can take it:
// its pool is empty or its locked master no longer exists.
type NoAllocationError struct {
	Slave string
}

func (e *NoAllocationError) Error() string {
	return fmt.Sprintf("no eligible master for slave '%s'", e.Slave)
}

// StoreError wraps a failed database operation. Nothing was committed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
