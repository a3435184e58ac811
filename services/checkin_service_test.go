package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
)

func TestMain(m *testing.M) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	os.Exit(m.Run())
}

type fakeCheckIns struct {
	getToday func(ctx context.Context, userID uint, day string) (*models.CheckIn, error)
	getState func(ctx context.Context, userID uint) (checkin.UserState, error)
	commit   func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error)
	commits  int
}

func (f *fakeCheckIns) GetTodaysCheckIn(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
	if f.getToday == nil {
		return nil, nil
	}
	return f.getToday(ctx, userID, day)
}

func (f *fakeCheckIns) GetUserState(ctx context.Context, userID uint) (checkin.UserState, error) {
	if f.getState == nil {
		return checkin.UserState{}, nil
	}
	return f.getState(ctx, userID)
}

func (f *fakeCheckIns) CommitCheckIn(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
	f.commits++
	if f.commit == nil {
		return &models.CheckIn{ID: 1, UserID: userID, CompanyID: companyID, Day: res.Day, TotalPoints: res.TotalPoints}, nil, nil
	}
	return f.commit(ctx, userID, companyID, seen, res)
}

func (f *fakeCheckIns) History(ctx context.Context, userID uint, page, size int) ([]models.CheckIn, int64, error) {
	return nil, 0, nil
}

type fakeSettings struct {
	settings checkin.Settings
	err      error
}

func (f fakeSettings) GetActiveConfig(ctx context.Context, companyID string) (checkin.Settings, error) {
	return f.settings, f.err
}

type fakeLocker struct {
	held     bool
	err      error
	unlocked int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	return "token", !f.held, nil
}

func (f *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	f.unlocked++
	return nil
}

type fakeCodes struct {
	valid string
}

func (f fakeCodes) Verify(ctx context.Context, companyID, code string) (bool, error) {
	return code != "" && code == f.valid, nil
}

func denverSettings() checkin.Settings {
	return checkin.Settings{
		WindowStart:         "06:00",
		WindowEnd:           "09:00",
		Timezone:            "America/Denver",
		EarlyCutoff:         "07:45",
		OnTimeCutoff:        "08:01",
		EarlyPoints:         2,
		OnTimePoints:        1,
		LatePoints:          0,
		PerfectWeekBonus:    5,
		StreakBonus:         10,
		StreakBonusInterval: 10,
	}
}

// 2024-03-13 07:30 America/Denver (MDT, UTC-6).
var earlyMorning = time.Date(2024, 3, 13, 13, 30, 0, 0, time.UTC)

type fixture struct {
	checkIns *fakeCheckIns
	settings fakeSettings
	locker   *fakeLocker
	codes    fakeCodes
	now      time.Time
}

func newFixture() *fixture {
	return &fixture{
		checkIns: &fakeCheckIns{},
		settings: fakeSettings{settings: denverSettings()},
		locker:   &fakeLocker{},
		now:      earlyMorning,
	}
}

func (f *fixture) service() *CheckInService {
	return NewCheckInService(f.checkIns, f.settings, f.locker, f.codes).WithClock(func() time.Time { return f.now })
}

func (f *fixture) checkIn(t *testing.T, code string) (*CheckInResponse, error) {
	t.Helper()
	return f.service().CheckIn(context.Background(), CheckInRequest{UserID: 7, CompanyID: "acme", Code: code})
}

func TestCheckInAccepted(t *testing.T) {
	f := newFixture()
	last := time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)
	f.checkIns.getState = func(ctx context.Context, userID uint) (checkin.UserState, error) {
		return checkin.UserState{CurrentStreak: 6, LongestStreak: 6, LastCheckInTime: &last}, nil
	}

	resp, err := f.checkIn(t, "")
	require.NoError(t, err)
	require.True(t, resp.Accepted())
	assert.Equal(t, checkin.Early, resp.Result.Classification)
	assert.Equal(t, 7, resp.Result.StreakDay)
	assert.True(t, resp.Result.PerfectWeek)
	assert.Equal(t, 7, resp.Result.TotalPoints)
	assert.Equal(t, "2024-03-13", resp.Result.Day)
	require.NotNil(t, resp.Record)
	assert.Equal(t, 7, resp.Record.TotalPoints)
	assert.Equal(t, 1, f.checkIns.commits)
	assert.Equal(t, 1, f.locker.unlocked)
}

func TestCheckInRejections(t *testing.T) {
	existing := &models.CheckIn{ID: 42, Day: "2024-03-13", Classification: "early"}

	tests := []struct {
		name     string
		setup    func(f *fixture)
		code     string
		wantKind checkin.RejectionKind
		wantRec  *models.CheckIn
	}{
		{
			name: "already checked in today",
			setup: func(f *fixture) {
				f.checkIns.getToday = func(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
					return existing, nil
				}
			},
			wantKind: checkin.AlreadyCheckedIn,
			wantRec:  existing,
		},
		{
			name: "duplicate caught at commit",
			setup: func(f *fixture) {
				calls := 0
				f.checkIns.getToday = func(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
					calls++
					if calls == 1 {
						return nil, nil
					}
					return existing, nil
				}
				f.checkIns.commit = func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
					return nil, nil, store.ErrAlreadyCheckedIn
				}
			},
			wantKind: checkin.AlreadyCheckedIn,
			wantRec:  existing,
		},
		{
			name: "already checked in and the code has since rotated",
			setup: func(f *fixture) {
				f.settings.settings.RequireCode = true
				f.codes = fakeCodes{valid: "NEW"}
				f.checkIns.getToday = func(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
					return existing, nil
				}
			},
			code:     "OLD",
			wantKind: checkin.AlreadyCheckedIn,
			wantRec:  existing,
		},
		{
			name: "duplicate at commit and the reload fails",
			setup: func(f *fixture) {
				calls := 0
				f.checkIns.getToday = func(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
					calls++
					if calls == 1 {
						return nil, nil
					}
					return nil, errors.New("read timeout")
				}
				f.checkIns.commit = func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
					return nil, nil, store.ErrAlreadyCheckedIn
				}
			},
			wantKind: checkin.AlreadyCheckedIn,
		},
		{
			name: "before the window opens",
			setup: func(f *fixture) {
				f.now = time.Date(2024, 3, 13, 11, 59, 0, 0, time.UTC) // 05:59 local
			},
			wantKind: checkin.OutsideWindow,
		},
		{
			name: "at the window end",
			setup: func(f *fixture) {
				f.now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC) // 09:00 local
			},
			wantKind: checkin.OutsideWindow,
		},
		{
			name: "code required but missing",
			setup: func(f *fixture) {
				f.settings.settings.RequireCode = true
				f.codes = fakeCodes{valid: "ABC123"}
			},
			wantKind: checkin.InvalidCode,
		},
		{
			name: "code required but wrong",
			setup: func(f *fixture) {
				f.settings.settings.RequireCode = true
				f.codes = fakeCodes{valid: "ABC123"}
			},
			code:     "XYZ",
			wantKind: checkin.InvalidCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			resp, err := f.checkIn(t, tt.code)
			require.NoError(t, err)
			require.False(t, resp.Accepted())
			require.NotNil(t, resp.Rejection)
			assert.Equal(t, tt.wantKind, resp.Rejection.Kind)
			assert.Equal(t, tt.wantRec, resp.Record)
			if tt.wantKind != checkin.AlreadyCheckedIn {
				assert.Zero(t, f.checkIns.commits, "rejected check-ins never reach storage")
			}
		})
	}
}

func TestCheckInOutsideWindowCarriesContext(t *testing.T) {
	f := newFixture()
	f.now = time.Date(2024, 3, 13, 16, 15, 0, 0, time.UTC) // 10:15 local

	resp, err := f.checkIn(t, "")
	require.NoError(t, err)
	require.NotNil(t, resp.Rejection)
	assert.Equal(t, "06:00-09:00 America/Denver", resp.Rejection.Window)
	assert.Equal(t, "10:15", resp.Rejection.LocalTime)
}

func TestCheckInValidCodeAccepted(t *testing.T) {
	f := newFixture()
	f.settings.settings.RequireCode = true
	f.codes = fakeCodes{valid: "ABC123"}

	resp, err := f.checkIn(t, "ABC123")
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
}

func TestCheckInErrors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name: "invalid settings",
			setup: func(f *fixture) {
				f.settings.settings.EarlyCutoff = "10:00"
			},
			wantErr: checkin.ErrInvalidConfig,
		},
		{
			name: "settings unavailable",
			setup: func(f *fixture) {
				f.settings.err = boom
			},
			wantErr: ErrPersistence,
		},
		{
			name: "duplicate tap in flight",
			setup: func(f *fixture) {
				f.locker.held = true
			},
			wantErr: ErrCheckInBusy,
		},
		{
			name: "state lookup fails",
			setup: func(f *fixture) {
				f.checkIns.getState = func(ctx context.Context, userID uint) (checkin.UserState, error) {
					return checkin.UserState{}, boom
				}
			},
			wantErr: ErrPersistence,
		},
		{
			name: "commit fails",
			setup: func(f *fixture) {
				f.checkIns.commit = func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
					return nil, nil, boom
				}
			},
			wantErr: ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			resp, err := f.checkIn(t, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, resp, "a failed check-in is never reported as a result")
		})
	}
}

func TestCheckInRecomputesWhenStateMovesBeforeCommit(t *testing.T) {
	f := newFixture()
	yesterday := time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)
	states := []checkin.UserState{
		{},
		{CurrentStreak: 6, LongestStreak: 6, LastCheckInTime: &yesterday},
	}
	reads := 0
	f.checkIns.getState = func(ctx context.Context, userID uint) (checkin.UserState, error) {
		st := states[reads]
		reads++
		return st, nil
	}
	var seenAt []*time.Time
	f.checkIns.commit = func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
		seenAt = append(seenAt, seen)
		if len(seenAt) == 1 {
			return nil, nil, store.ErrStateChanged
		}
		return &models.CheckIn{ID: 2, Day: res.Day, StreakDay: res.StreakDay}, nil, nil
	}

	resp, err := f.checkIn(t, "")
	require.NoError(t, err)
	require.True(t, resp.Accepted())
	assert.Equal(t, 2, reads)
	assert.Equal(t, 2, f.checkIns.commits)
	assert.Nil(t, seenAt[0])
	assert.Equal(t, &yesterday, seenAt[1])
	assert.Equal(t, 7, resp.Result.StreakDay)
}

func TestCheckInGivesUpWhenStateKeepsMoving(t *testing.T) {
	f := newFixture()
	f.checkIns.commit = func(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
		return nil, nil, store.ErrStateChanged
	}

	resp, err := f.checkIn(t, "")
	assert.ErrorIs(t, err, ErrCheckInBusy)
	assert.Nil(t, resp)
	assert.Equal(t, maxCommitAttempts, f.checkIns.commits)
	assert.Equal(t, 1, f.locker.unlocked)
}

func TestCheckInLockErrorFallsBackToIndex(t *testing.T) {
	f := newFixture()
	f.locker.err = errors.New("redis down")

	resp, err := f.checkIn(t, "")
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Zero(t, f.locker.unlocked)
}

func TestStatus(t *testing.T) {
	f := newFixture()
	f.now = time.Date(2024, 3, 13, 16, 15, 0, 0, time.UTC)
	f.checkIns.getToday = func(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
		assert.Equal(t, "2024-03-13", day)
		return &models.CheckIn{ID: 3, Day: day}, nil
	}
	f.checkIns.getState = func(ctx context.Context, userID uint) (checkin.UserState, error) {
		return checkin.UserState{CurrentStreak: 2, PointsBalance: 9}, nil
	}

	st, err := f.service().Status(context.Background(), 7, "acme")
	require.NoError(t, err)
	assert.True(t, st.CheckedIn)
	assert.Equal(t, "2024-03-13", st.Day)
	assert.False(t, st.Window.Allowed)
	assert.Equal(t, 9, st.State.PointsBalance)
	assert.Equal(t, checkin.StreakCalendar, st.Settings.StreakPolicy)
}
