package systems

import "time"

// System is one stage of the simulation step.
type System interface {
	Name() string
	Priority() Priority
	// Update advances the system by dt seconds of simulated time ending at now.
	Update(dt float64, now time.Time) error
}

// Priority defines execution order. Higher runs first.
type Priority uint16

const (
	PriorityLowest  Priority = 200
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 700
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// Metrics provides runtime metrics for a system.
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	MinExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

func (m *Metrics) record(took time.Duration, at time.Time, err error) {
	m.ExecutionCount++
	m.TotalExecutionTime += took
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if took > m.MaxExecutionTime {
		m.MaxExecutionTime = took
	}
	if m.ExecutionCount == 1 || took < m.MinExecutionTime {
		m.MinExecutionTime = took
	}
	m.LastExecutionTime = at
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
}

// Func adapts a function to System.
type Func struct {
	SystemName     string
	SystemPriority Priority
	Fn             func(dt float64, now time.Time) error
}

func (f Func) Name() string { return f.SystemName }

func (f Func) Priority() Priority { return f.SystemPriority }

func (f Func) Update(dt float64, now time.Time) error { return f.Fn(dt, now) }
