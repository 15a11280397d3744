package privileged

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartystreets/goconvey/convey"
)

type fakeSet struct {
	members  map[string][]string
	err      error
	deadline bool
}

func (f *fakeSet) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	return redis.NewStringSliceResult(f.members[key], nil)
}

func TestStatic(t *testing.T) {
	convey.Convey("Given a static set with blanks", t, func() {
		ids, err := Static{"op-1", " ", " op-2 "}.PrivilegedPlayerIDs(context.Background())

		convey.So(err, convey.ShouldBeNil)
		convey.So(ids, convey.ShouldResemble, []string{"op-1", "op-2"})
	})
}

func TestRedisProvider(t *testing.T) {
	convey.Convey("Given a redis-backed provider", t, func() {
		ctx := context.Background()
		set := &fakeSet{members: map[string][]string{"toprank:privileged": {"op-1", "op-2"}}}
		p := NewRedisProvider(set, "toprank:privileged", WithTimeout(time.Second))

		convey.Convey("It returns the set members under a deadline", func() {
			ids, err := p.PrivilegedPlayerIDs(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ids, convey.ShouldResemble, []string{"op-1", "op-2"})
			convey.So(set.deadline, convey.ShouldBeTrue)
		})

		convey.Convey("A missing key is an empty set", func() {
			ids, err := NewRedisProvider(set, "other").PrivilegedPlayerIDs(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ids, convey.ShouldBeEmpty)
		})

		convey.Convey("Redis failures wrap ErrProvider", func() {
			set.err = errors.New("connection refused")
			_, err := p.PrivilegedPlayerIDs(ctx)
			convey.So(errors.Is(err, ErrProvider), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "connection refused")
		})
	})
}

func TestUnion(t *testing.T) {
	convey.Convey("Given static and redis providers", t, func() {
		ctx := context.Background()
		set := &fakeSet{members: map[string][]string{"k": {"op-2", "op-3"}}}
		u := Union{Static{"op-1", "op-2"}, NewRedisProvider(set, "k")}

		convey.Convey("Ids are merged without duplicates", func() {
			ids, err := u.PrivilegedPlayerIDs(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ids, convey.ShouldResemble, []string{"op-1", "op-2", "op-3"})
		})

		convey.Convey("One failing member fails the union", func() {
			set.err = redis.ErrClosed
			_, err := u.PrivilegedPlayerIDs(ctx)
			convey.So(errors.Is(err, ErrProvider), convey.ShouldBeTrue)
		})
	})
}
