package man

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManCmd(t *testing.T) {
	root := &cobra.Command{Use: "fuzic", Short: "Spotify playlist tools"}
	root.AddCommand(NewManCmd())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"man"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), ".TH")
	assert.Contains(t, buf.String(), "fuzic")
}
