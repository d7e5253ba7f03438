package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
)

func TestIsValidTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"ipv4", "192.168.1.1", true},
		{"ipv6", "2001:4860:4860::8888", true},
		{"domain", "example.com", true},
		{"subdomain", "trace.example.co.uk", true},
		{"single label host", "localhost", true},
		{"empty", "", false},
		{"spaces", "not a host", false},
		{"leading dash", "-bad.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTarget(tt.target))
		})
	}
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget("8.8.8.8"))

	err := ValidateTarget("not a host")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
}

func TestParsePortList(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{
			name: "single port",
			spec: "80",
			want: []int{80},
		},
		{
			name: "mixed list and range",
			spec: "22,80-82,443",
			want: []int{22, 80, 81, 82, 443},
		},
		{
			name: "duplicates collapse",
			spec: "80,80,80-81",
			want: []int{80, 81},
		},
		{
			name: "whitespace tolerated",
			spec: " 22 , 443 ",
			want: []int{22, 443},
		},
		{
			name:    "port zero",
			spec:    "0",
			wantErr: true,
		},
		{
			name:    "port too large",
			spec:    "65536",
			wantErr: true,
		},
		{
			name:    "reversed range",
			spec:    "90-80",
			wantErr: true,
		},
		{
			name:    "range too wide",
			spec:    "1-200",
			wantErr: true,
		},
		{
			name:    "garbage",
			spec:    "http",
			wantErr: true,
		},
		{
			name:    "empty",
			spec:    "",
			wantErr: true,
		},
		{
			name:    "only commas",
			spec:    ",,,",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePortList(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.NoError(t, ValidateTimeout(5))
	assert.NoError(t, ValidateTimeout(300))
	assert.Error(t, ValidateTimeout(4))
	assert.Error(t, ValidateTimeout(301))
	assert.Error(t, ValidateTimeout(0))
}

func TestValidateMaxHops(t *testing.T) {
	assert.NoError(t, ValidateMaxHops(1))
	assert.NoError(t, ValidateMaxHops(255))
	assert.Error(t, ValidateMaxHops(0))
	assert.Error(t, ValidateMaxHops(256))
}

func TestValidateProtocol(t *testing.T) {
	proto, err := ValidateProtocol("TCP")
	require.NoError(t, err)
	assert.Equal(t, "tcp", proto)

	proto, err = ValidateProtocol("udp")
	require.NoError(t, err)
	assert.Equal(t, "udp", proto)

	_, err = ValidateProtocol("icmp")
	assert.Error(t, err)
}

func TestValidateTargetsFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("8.8.8.8\n"), 0o600))
	assert.NoError(t, ValidateTargetsFile(path))

	err := ValidateTargetsFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileNotFound))

	err = ValidateTargetsFile(dir)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Already existing directories are fine.
	assert.NoError(t, EnsureDir(dir))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"2001:4860:4860::8888", "2001_4860_4860_8888"},
		{`a/b\c*d`, "a_b_c_d"},
		{"***", "output"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in))
	}
}
