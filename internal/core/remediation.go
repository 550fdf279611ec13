package core

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"warden/internal/logging"
)

// RemediationError reports a failed quarantine, restore or delete. The target
// is left as it was.
type RemediationError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemediationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemediationError) Unwrap() error { return e.Err }

// Delete removes a file, or a directory tree when path is a directory.
// The filesystem root is always refused.
func Delete(path string) error {
	if err := (*Whitelist)(nil).Check(path); err != nil {
		return &RemediationError{Op: "delete", Path: path, Err: err}
	}
	info, err := os.Lstat(path)
	if err != nil {
		return &RemediationError{Op: "delete", Path: path, Err: err}
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return &RemediationError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// RemediationManager applies the whitelist before quarantining or deleting
type RemediationManager struct {
	Jail      *QuarantineJail
	Whitelist *Whitelist
	logger    *zap.Logger
}

// NewRemediationManager protects the jail itself from remediation.
func NewRemediationManager(jail *QuarantineJail, logger *zap.Logger) *RemediationManager {
	return &RemediationManager{
		Jail:      jail,
		Whitelist: NewWhitelist(jail.JailPath),
		logger:    logging.WithComponent(logger, "remediation"),
	}
}

// Quarantine isolates path unless it is protected.
func (r *RemediationManager) Quarantine(path string) (QuarantineEntry, error) {
	if err := r.Whitelist.Check(path); err != nil {
		r.logger.Warn("Refusing to quarantine protected target", zap.String("path", path))
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: path, Err: err}
	}
	entry, err := r.Jail.Quarantine(path)
	if err != nil {
		r.logger.Error("Quarantine failed", zap.String("path", path), zap.Error(err))
	}
	return entry, err
}

// Delete removes path unless it is protected.
func (r *RemediationManager) Delete(path string) error {
	if err := r.Whitelist.Check(path); err != nil {
		r.logger.Warn("Refusing to delete protected target", zap.String("path", path))
		return &RemediationError{Op: "delete", Path: path, Err: err}
	}
	if err := Delete(path); err != nil {
		r.logger.Error("Delete failed", zap.String("path", path), zap.Error(err))
		return err
	}
	r.logger.Info("Target deleted", zap.String("path", path))
	return nil
}

// HandleThreat quarantines the threat's backing file. Threats that are
// already gone count as handled.
func (r *RemediationManager) HandleThreat(t Threat) (QuarantineEntry, error) {
	r.logger.Warn("Threat detected",
		zap.String("id", t.ID),
		zap.String("source", string(t.Source)),
		zap.String("path", t.Path),
		zap.String("confidence", t.Confidence()))

	if t.Source == SourceProcess && r.Whitelist.IsCritical(t.ProcessName) {
		r.logger.Warn("Refusing to quarantine critical process executable",
			zap.String("process", t.ProcessName), zap.String("path", t.Path))
		return QuarantineEntry{}, &RemediationError{Op: "quarantine", Path: t.Path, Err: ErrProtected}
	}
	entry, err := r.Quarantine(t.Path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		r.logger.Info("Threat vanished before remediation", zap.String("path", t.Path))
		return QuarantineEntry{}, nil
	}
	return entry, err
}
