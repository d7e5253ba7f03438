package traceroute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHopValidate(t *testing.T) {
	tests := []struct {
		name    string
		hop     Hop
		wantErr bool
	}{
		{
			name: "valid responding hop",
			hop:  Hop{Number: 1, IP: "192.168.1.1", Status: StatusSuccess},
		},
		{
			name: "valid timeout hop",
			hop:  Hop{Number: 2, IP: NoResponseIP, Status: StatusTimeout},
		},
		{
			name:    "zero hop number",
			hop:     Hop{Number: 0, IP: "192.168.1.1"},
			wantErr: true,
		},
		{
			name:    "empty IP",
			hop:     Hop{Number: 1, IP: ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hop.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewScanResult(t *testing.T) {
	result := NewScanResult("8.8.8.8", 80, "tcp")

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.ID.String())
	assert.Equal(t, "8.8.8.8", result.Target)
	assert.Equal(t, 80, result.Port)
	assert.False(t, result.ScanTime.IsZero())
	assert.Zero(t, result.TotalHops)
	assert.False(t, result.TargetReached)
}

func TestTargetReached(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		hops    []Hop
		reached bool
	}{
		{
			name:    "empty hop list is never reached",
			target:  "8.8.8.8",
			hops:    nil,
			reached: false,
		},
		{
			name:   "last hop IP equals target",
			target: "8.8.8.8",
			hops: []Hop{
				{Number: 1, IP: "192.168.1.1", Status: StatusTimeout},
				{Number: 2, IP: "8.8.8.8", Status: StatusTimeout},
			},
			reached: true,
		},
		{
			name:   "last hop successful but different IP",
			target: "example.com",
			hops: []Hop{
				{Number: 1, IP: "93.184.216.34", RTT: floatPtr(10), Status: StatusSuccess},
			},
			reached: true,
		},
		{
			name:   "last hop timed out",
			target: "8.8.8.8",
			hops: []Hop{
				{Number: 1, IP: "192.168.1.1", RTT: floatPtr(1), Status: StatusSuccess},
				{Number: 2, IP: NoResponseIP, Status: StatusTimeout},
			},
			reached: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewScanResult(tt.target, 80, "tcp")
			result.SetHops(tt.hops)
			assert.Equal(t, tt.reached, result.TargetReached)
			assert.Equal(t, len(tt.hops), result.TotalHops)
		})
	}
}

func TestAddHopRecomputes(t *testing.T) {
	result := NewScanResult("8.8.8.8", 80, "tcp")

	result.AddHop(Hop{Number: 1, IP: "192.168.1.1", Status: StatusTimeout})
	assert.False(t, result.TargetReached)
	assert.Equal(t, 1, result.TotalHops)

	result.AddHop(Hop{Number: 2, IP: "8.8.8.8", RTT: floatPtr(12.5), Status: StatusSuccess})
	assert.True(t, result.TargetReached)
	assert.Equal(t, 2, result.TotalHops)
}

func TestStatistics(t *testing.T) {
	result := NewScanResult("8.8.8.8", 80, "tcp")
	result.SetHops([]Hop{
		{Number: 1, IP: "192.168.1.1", RTT: floatPtr(1.0), Status: StatusSuccess},
		{Number: 2, IP: NoResponseIP, Status: StatusTimeout},
		{Number: 3, IP: "8.8.8.8", RTT: floatPtr(3.0), Status: StatusSuccess},
	})

	stats := result.Statistics()
	assert.Equal(t, 3, stats.TotalHops)
	assert.True(t, stats.TargetReached)
	assert.Equal(t, 2, stats.SuccessfulHops)
	assert.Equal(t, 1, stats.TimeoutHops)

	require.NotNil(t, stats.AvgRTT)
	assert.InDelta(t, 2.0, *stats.AvgRTT, 0.001)
	assert.InDelta(t, 1.0, *stats.MinRTT, 0.001)
	assert.InDelta(t, 3.0, *stats.MaxRTT, 0.001)
}

func TestStatisticsNoRTTData(t *testing.T) {
	result := NewScanResult("8.8.8.8", 80, "tcp")
	result.SetHops([]Hop{
		{Number: 1, IP: NoResponseIP, Status: StatusTimeout},
	})

	stats := result.Statistics()
	assert.Nil(t, stats.AvgRTT)
	assert.Nil(t, stats.MinRTT)
	assert.Nil(t, stats.MaxRTT)
}

func TestResultString(t *testing.T) {
	result := NewScanResult("8.8.8.8", 80, "tcp")
	result.SetHops([]Hop{
		{Number: 1, IP: "192.168.1.1", Hostname: "gw.local.lan", RTT: floatPtr(1.234), Status: StatusSuccess},
		{Number: 2, IP: NoResponseIP, Status: StatusTimeout},
	})

	s := result.String()
	assert.Contains(t, s, "Traceroute to 8.8.8.8:80 (TCP)")
	assert.Contains(t, s, "192.168.1.1")
	assert.Contains(t, s, "gw.local.lan")
	assert.Contains(t, s, "Total hops: 2")
}
