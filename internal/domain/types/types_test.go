package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/toprank/internal/domain/model"
	types "github.com/okian/toprank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryConversion(t *testing.T) {
	Convey("Given domain records", t, func() {
		recs := []model.RankRecord{
			{RowID: 1, MetricKey: "kills", PlayerID: "p1", Value: 10, Rank: 1},
			{RowID: 2, MetricKey: "kills", PlayerID: "p2", Value: 5, Rank: 2},
		}

		Convey("When converting to API entries", func() {
			entries := types.FromRecords(recs)

			Convey("Then every field is carried over", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[1], ShouldResemble, types.Entry{RowID: 2, MetricKey: "kills", PlayerID: "p2", Value: 5, Rank: 2})
			})

			Convey("Then the JSON uses snake_case keys", func() {
				raw, err := json.Marshal(entries[0])
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"row_id":1,"metric_key":"kills","player_id":"p1","value":10,"rank":1}`)
			})
		})

		Convey("When converting nil records", func() {
			entries := types.FromRecords(nil)

			Convey("Then an empty, non-nil slice is returned", func() {
				So(entries, ShouldNotBeNil)
				So(entries, ShouldBeEmpty)
			})
		})
	})
}

func TestBatchRequest(t *testing.T) {
	Convey("Given a decoded batch request", t, func() {
		var req types.BatchRequest
		err := json.Unmarshal([]byte(`{"batch_id":"b1","records":[{"metric_key":"kills","player_id":"p1","value":3.5}]}`), &req)
		So(err, ShouldBeNil)

		Convey("Then ToBatch yields unranked records", func() {
			batch := req.ToBatch()
			So(batch, ShouldResemble, model.Batch{{MetricKey: "kills", PlayerID: "p1", Value: 3.5}})
		})
	})
}
