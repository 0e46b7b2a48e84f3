//go:build linux && (amd64 || arm64)

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

package semaphore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SemaphoreTestSuite struct {
	suite.Suite
	key     int32
	backend *Backend
	lock    *Lock
}

func (s *SemaphoreTestSuite) SetupTest() {
	s.lock = nil
	s.key = int32(0x53000000 + os.Getpid()%0x10000*16 + int(time.Now().UnixNano()%16))
	s.backend = New(Settings{Mode: 0o600})
	l, err := s.backend.New(s.key)
	if err != nil {
		s.T().Skipf("System V semaphores unavailable: %v", err)
	}
	s.lock = l.(*Lock)
}

func (s *SemaphoreTestSuite) TearDownTest() {
	if s.lock != nil {
		s.NoError(s.lock.Destroy())
	}
}

func (s *SemaphoreTestSuite) TestAcquireRelease() {
	v, err := s.lock.Value()
	s.Require().NoError(err)
	s.Equal(1, v)

	s.Require().NoError(s.lock.WriteLock())
	v, err = s.lock.Value()
	s.Require().NoError(err)
	s.Equal(0, v)
	s.Require().NoError(s.lock.Release())

	s.Require().NoError(s.lock.ReadLock())
	s.Require().NoError(s.lock.Release())
	v, err = s.lock.Value()
	s.Require().NoError(err)
	s.Equal(1, v)
}

func (s *SemaphoreTestSuite) TestAttachedLockExcludes() {
	l, err := s.backend.Attach(s.key)
	s.Require().NoError(err)
	peer := l.(*Lock)

	s.Require().NoError(s.lock.WriteLock())
	acquired := make(chan struct{})
	go func() {
		if err := peer.ReadLock(); err == nil {
			close(acquired)
		}
	}()
	select {
	case <-acquired:
		s.FailNow("peer acquired a held semaphore")
	case <-time.After(50 * time.Millisecond):
	}
	s.Require().NoError(s.lock.Release())
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		s.FailNow("peer never acquired the semaphore")
	}
	s.Require().NoError(peer.Release())

	// attached locks do not own the semaphore
	s.NoError(peer.Destroy())
	_, err = s.backend.Attach(s.key)
	s.NoError(err)
}

func (s *SemaphoreTestSuite) TestForceOwnershipKeepsLiveHolder() {
	s.Require().NoError(s.lock.WriteLock())
	l, err := s.backend.Attach(s.key)
	s.Require().NoError(err)
	heir := l.(*Lock)

	s.Require().NoError(heir.ForceOwnership())
	v, err := heir.Value()
	s.Require().NoError(err)
	s.Equal(0, v, "a live holder stays inside the exclusive section")

	acquired := make(chan struct{})
	go func() {
		if err := heir.WriteLock(); err == nil {
			close(acquired)
		}
	}()
	select {
	case <-acquired:
		s.FailNow("heir entered while the holder was inside")
	case <-time.After(50 * time.Millisecond):
	}
	s.Require().NoError(s.lock.Release())
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		s.FailNow("heir never acquired the semaphore")
	}
	s.Require().NoError(heir.Release())

	v, err = heir.Value()
	s.Require().NoError(err)
	s.Equal(1, v)

	s.Require().NoError(heir.Destroy())
	_, err = s.backend.Attach(s.key)
	s.Error(err)
	// already removed
	s.NoError(s.lock.Destroy())
	s.lock = nil
}

func (s *SemaphoreTestSuite) TestForceOwnershipReclaimsFromDeadHolder() {
	// a count taken without undo by a process that is gone
	s.Require().NoError(semctl(s.lock.id, setVal, 0))
	alive := pidAlive
	pidAlive = func(int32) bool { return false }
	defer func() { pidAlive = alive }()

	l, err := s.backend.Attach(s.key)
	s.Require().NoError(err)
	heir := l.(*Lock)
	s.Require().NoError(heir.ForceOwnership())

	v, err := heir.Value()
	s.Require().NoError(err)
	s.Equal(1, v)
}

func (s *SemaphoreTestSuite) TestForceOwnershipOnFreeSemaphore() {
	alive := pidAlive
	pidAlive = func(int32) bool {
		s.Fail("holder lookup on a free semaphore")
		return true
	}
	defer func() { pidAlive = alive }()

	s.Require().NoError(s.lock.ForceOwnership())
	v, err := s.lock.Value()
	s.Require().NoError(err)
	s.Equal(1, v)
}

func (s *SemaphoreTestSuite) TestAttachMissing() {
	_, err := s.backend.Attach(s.key + 1)
	s.Error(err)
}

func (s *SemaphoreTestSuite) TestNewReusesLeftoverSemaphore() {
	s.Require().NoError(s.lock.WriteLock())
	l, err := s.backend.New(s.key)
	s.Require().NoError(err)
	v, err := l.(*Lock).Value()
	s.Require().NoError(err)
	s.Equal(1, v)
}

func TestSemaphoreTestSuite(t *testing.T) {
	suite.Run(t, new(SemaphoreTestSuite))
}

func TestInvalidSettings(t *testing.T) {
	b := New(Settings{Initial: -1})
	_, err := b.New(1)
	if err == nil {
		t.Fatal("expected error for negative initial value")
	}
	_, err = New(Settings{Mode: 0o4777}).Attach(1)
	if err == nil {
		t.Fatal("expected error for mode with setuid bit")
	}
}
