/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/cortex/pkg/flock"
	"github.com/srediag/cortex/pkg/semaphore"
)

func TestCellPayload(t *testing.T) {
	var c Cell
	require.NoError(t, c.SetPayload([]byte("hello")))
	assert.Equal(t, uint32(5), c.Len)
	assert.Equal(t, []byte("hello"), c.Payload())

	require.NoError(t, c.SetPayload([]byte("hi")))
	assert.Equal(t, []byte("hi"), c.Payload())
	assert.Equal(t, byte(0), c.Data[2], "old payload is cleared")

	err := c.SetPayload(make([]byte, CellPayload+1))
	require.Error(t, err)
	assert.Equal(t, []byte("hi"), c.Payload())

	c.Len = 1 << 20
	assert.Len(t, c.Payload(), CellPayload)
}

func TestParseKey(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int32
		ok   bool
	}{
		{"42", 42, true},
		{"0x2a", 42, true},
		{"-7", -7, true},
		{"0", 0, false},
		{"4294967296", 0, false},
		{"key", 0, false},
	} {
		got, err := parseKey(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(wrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), wrap)
	}
	assert.Equal(t, "a b", wrapString("  a   b "))
}

func TestWriteFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFields(&buf, "key", int32(3), "owner", true))
	assert.Equal(t, "key=3 owner=true\n", buf.String())
}

func TestBackendFromConfig(t *testing.T) {
	defer viper.Reset()

	viper.Set("backend", "semaphore")
	b, err := backendFromConfig()
	require.NoError(t, err)
	assert.IsType(t, &semaphore.Backend{}, b)

	dir := t.TempDir()
	viper.Set("backend", "flock")
	viper.Set("lock-dir", dir)
	b, err = backendFromConfig()
	require.NoError(t, err)
	require.IsType(t, &flock.Backend{}, b)
	assert.True(t, strings.HasPrefix(b.(*flock.Backend).Path(1), dir))

	viper.Set("backend", "futex")
	_, err = backendFromConfig()
	assert.Error(t, err)
}

func TestConsistent(t *testing.T) {
	assert.True(t, consistent(&Cell{}))

	c := Cell{Seq: 0x102, Len: CellPayload}
	for i := range c.Data {
		c.Data[i] = 0x02
	}
	assert.True(t, consistent(&c))

	c.Data[100] = 0x01
	assert.False(t, consistent(&c))

	c = Cell{Seq: 1, Len: 3}
	assert.False(t, consistent(&c))
}

func TestVersionCommand(t *testing.T) {
	defer viper.Reset()

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"version"})
	defer RootCmd.SetOut(nil)

	require.NoError(t, RootCmd.Execute())
	assert.Equal(t, "cortex v"+Version+"\n", out.String())
}
