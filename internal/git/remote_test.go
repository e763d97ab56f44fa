package git

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectFromRemoteURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"ssh", "git@gitlab.example.com:group/project.git", "group/project", false},
		{"ssh no suffix", "git@gitlab.example.com:group/project", "group/project", false},
		{"https", "https://gitlab.example.com/group/project.git", "group/project", false},
		{"https nested group", "https://gitlab.example.com/group/sub/project.git", "group/sub/project", false},
		{"ssh scheme with port", "ssh://git@gitlab.example.com:2222/group/project.git", "group/project", false},
		{"trailing slash", "https://gitlab.example.com/group/project/", "group/project", false},
		{"empty", "", "", true},
		{"no path", "https://gitlab.example.com/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProjectFromRemoteURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
