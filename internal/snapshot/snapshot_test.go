package snapshot_test

import (
	"testing"

	"github.com/mna/microvium/internal/snapshot"
	"github.com/mna/microvium/internal/vm"
	"github.com/stretchr/testify/require"
)

func evalAndSnapshot(t *testing.T, src string) *vm.SnapshotInfo {
	t.Helper()
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{SourceText: src, DebugFilename: "snap.mv"})
	require.NoError(t, err)
	return m.CreateSnapshotInfo()
}

// TestEncodeDecodeRoundTrip exercises spec §8 scenario 5: one exported
// function, one `let`-declared global, and one string literal survive an
// encode/decode round trip, landing in the expected regions.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	info := evalAndSnapshot(t, `let greeting = "hello"; function greet(){ return greeting; } vmExport(0, greet);`)

	data, err := snapshot.Encode(info, nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	mapping, err := snapshot.Decode(data)
	require.NoError(t, err)

	require.Equal(t, 1, mapping.GlobalVariableCount)
	require.Len(t, mapping.Globals, 1)
	require.Contains(t, mapping.Strings, "hello")

	foundClosure := false
	for _, a := range mapping.Allocations {
		if a.Kind == "closure" {
			foundClosure = true
		}
	}
	require.True(t, foundClosure, "expected the exported function to appear as a GC allocation")

	require.Len(t, mapping.Exports, 1)

	// The region table and pretty-printer should not panic on a real image.
	require.NotEmpty(t, mapping.String())
}

// TestDecodeRejectsCRCMismatch exercises spec §8 scenario 6: flipping a
// byte after the header's CRC field must be caught as a CRC mismatch
// rather than silently misinterpreted.
func TestDecodeRejectsCRCMismatch(t *testing.T) {
	info := evalAndSnapshot(t, `vmExport(0, 1);`)
	data, err := snapshot.Encode(info, nil)
	require.NoError(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xFF

	_, err = snapshot.Decode(corrupt)
	require.Error(t, err)
	var invalid *snapshot.InvalidBytecode
	require.ErrorAs(t, err, &invalid)
}

// TestDecodeRejectsSizeMismatch exercises the other half of spec §8
// scenario 6: a bytecodeSize field that disagrees with the actual image
// length must fail before the CRC is even computed.
func TestDecodeRejectsSizeMismatch(t *testing.T) {
	info := evalAndSnapshot(t, `vmExport(0, 1);`)
	data, err := snapshot.Encode(info, nil)
	require.NoError(t, err)

	truncated := data[:len(data)-1]
	_, err = snapshot.Decode(truncated)
	require.Error(t, err)
	var invalid *snapshot.InvalidBytecode
	require.ErrorAs(t, err, &invalid)
}
