package pose

import (
	"sync"

	"github.com/ayusman/posetrack/internal/tracking"
)

// MockProvider is a test implementation of the Provider interface.
// It allows tests to control the samples and device bindings per role.
type MockProvider struct {
	mu      sync.Mutex
	poses   map[tracking.Role]tracking.RawPose
	devices map[tracking.Role]int
	err     error
	calls   int
}

// NewMockProvider creates a new MockProvider with no devices bound.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		poses:   make(map[tracking.Role]tracking.RawPose),
		devices: make(map[tracking.Role]int),
	}
}

// SetPose sets the sample returned for role.
func (m *MockProvider) SetPose(role tracking.Role, p tracking.RawPose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses[role] = p
}

// SetDeviceIndex binds role to a device index.
func (m *MockProvider) SetDeviceIndex(role tracking.Role, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[role] = index
}

// SetError sets the error returned by Pose. nil clears it.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Pose has been called.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Pose returns the pre-configured sample or error.
func (m *MockProvider) Pose(role tracking.Role) (tracking.RawPose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return tracking.RawPose{}, m.err
	}
	return m.poses[role], nil
}

// DeviceIndex returns the bound device or tracking.NoDevice.
func (m *MockProvider) DeviceIndex(role tracking.Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.devices[role]; ok {
		return idx
	}
	return tracking.NoDevice
}
