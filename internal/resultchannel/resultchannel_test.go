// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package resultchannel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameMatchesTemplate(t *testing.T) {
	n := Name("https://host/api/query", "a=1&b=2")
	require.Equal(t, "https://host/api/query?a%3D1%26b%3D2", n)
}

func TestSubscribeReplaysHistory(t *testing.T) {
	h := NewHub()
	c := h.Open("chan-a")
	c.Send([]byte(`{"n":1}`))
	c.Send([]byte(`{"n":2}`))

	_, replay, cancel := c.Subscribe()
	defer cancel()
	require.Len(t, replay, 2)
	require.Equal(t, `{"n":1}`, string(replay[0]))
}

func TestSubscribeReceivesLiveSends(t *testing.T) {
	h := NewHub()
	c := h.Open("chan-b")
	live, _, cancel := c.Subscribe()
	defer cancel()

	c.Send([]byte(`{"n":1}`))
	msg := <-live
	require.Equal(t, `{"n":1}`, string(msg))
}

func TestFinishClosesLiveSubscribers(t *testing.T) {
	h := NewHub()
	c := h.Open("chan-c")
	live, _, cancel := c.Subscribe()
	defer cancel()

	h.Finish("chan-c")
	_, ok := <-live
	require.False(t, ok)
}

func TestOpenAfterFinishStartsFresh(t *testing.T) {
	h := NewHub()
	first := h.Open("chan-d")
	first.Send([]byte(`{"n":1}`))
	h.Finish("chan-d")

	second := h.Open("chan-d")
	require.NotSame(t, first, second)
	_, replay, cancel := second.Subscribe()
	defer cancel()
	require.Empty(t, replay)
}
