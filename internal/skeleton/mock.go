package skeleton

import (
	"sync"

	"github.com/ayusman/posetrack/internal/tracking"
)

// MockProvider is a test implementation of the Provider interface.
// Every role shares the configured state.
type MockProvider struct {
	mu         sync.Mutex
	status     Status
	bones      Bones
	summaries  map[SummaryType]Summary
	references map[ReferencePose]Bones
	err        error

	boneCalls    int
	summaryCalls int
	lastSpace    TransformSpace
	lastMotion   MotionRange
}

// NewMockProvider creates an active MockProvider with identity bones.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		status:     Status{Active: true, ActiveBinding: true, PoseValid: true, DeviceConnected: true, Tracking: tracking.TrackingRunningOK},
		bones:      IdentityBones(),
		summaries:  make(map[SummaryType]Summary),
		references: make(map[ReferencePose]Bones),
	}
}

// SetStatus sets the status returned by Status.
func (m *MockProvider) SetStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

// SetBones sets the raw bones returned by Bones.
func (m *MockProvider) SetBones(b Bones) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bones = b
}

// SetSummary sets the summary returned for kind.
func (m *MockProvider) SetSummary(kind SummaryType, s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[kind] = s
}

// SetReference sets the raw bones returned for a reference pose.
func (m *MockProvider) SetReference(pose ReferencePose, b Bones) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.references[pose] = b
}

// SetError sets the error returned by Bones and Summary. nil clears it.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// BoneCalls returns how many times Bones has been called.
func (m *MockProvider) BoneCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boneCalls
}

// SummaryCalls returns how many times Summary has been called.
func (m *MockProvider) SummaryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryCalls
}

// LastRequest returns the space and motion range of the last Bones call.
func (m *MockProvider) LastRequest() (TransformSpace, MotionRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpace, m.lastMotion
}

// Status returns the pre-configured status.
func (m *MockProvider) Status(tracking.Role) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Bones returns the pre-configured bones or error.
func (m *MockProvider) Bones(_ tracking.Role, space TransformSpace, motion MotionRange) (Bones, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boneCalls++
	m.lastSpace, m.lastMotion = space, motion
	if m.err != nil {
		return Bones{}, m.err
	}
	return m.bones, nil
}

// Summary returns the pre-configured summary for kind or error.
func (m *MockProvider) Summary(_ tracking.Role, kind SummaryType) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaryCalls++
	if m.err != nil {
		return Summary{}, m.err
	}
	return m.summaries[kind], nil
}

// ReferenceBones returns the pre-configured reference bones or ErrNoReferencePose.
func (m *MockProvider) ReferenceBones(_ tracking.Role, _ TransformSpace, pose ReferencePose) (Bones, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.references[pose]
	if !ok {
		return Bones{}, ErrNoReferencePose
	}
	return b, nil
}
