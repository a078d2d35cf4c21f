package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/rakeplan/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher records rake commands and acknowledges them immediately. It
// is used by the CLI dry runs and in tests.
type MockPublisher struct {
	mu       sync.Mutex
	Commands []coremqtt.RakeCommand
	// FailLoadingPoints makes SendRake fail for these loading points.
	FailLoadingPoints map[string]bool
	// RejectRakes makes the ack of these rakes negative.
	RejectRakes map[string]bool
	acks        map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		FailLoadingPoints: make(map[string]bool),
		RejectRakes:       make(map[string]bool),
		acks:              make(map[string]bool),
	}
}

// SendRake records the command or returns an error if configured to fail.
func (m *MockPublisher) SendRake(cmd coremqtt.RakeCommand) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLoadingPoints[cmd.LoadingPointID] {
		return "", fmt.Errorf("publish to %s failed", coremqtt.CommandTopic(cmd.LoadingPointID))
	}
	if cmd.CommandID == "" {
		cmd.CommandID = fmt.Sprintf("cmd-%s", cmd.RakeID)
	}
	m.Commands = append(m.Commands, cmd)
	m.acks[cmd.CommandID] = !m.RejectRakes[cmd.RakeID]
	return cmd.CommandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.acks[commandID]
	m.mu.Unlock()
	if !exists {
		return false, coremqtt.ErrUnknownCommand
	}
	if !ok {
		return false, coremqtt.ErrRejected
	}
	return true, nil
}

// Sent returns a copy of the recorded commands.
func (m *MockPublisher) Sent() []coremqtt.RakeCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.RakeCommand(nil), m.Commands...)
}
