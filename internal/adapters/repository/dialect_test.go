package repository

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDialect(t *testing.T) {
	Convey("Given the postgres dialect", t, func() {
		Convey("Placeholders are numbered in order", func() {
			got := postgresDialect.rebind("UPDATE models SET elo_rating = ? WHERE id = ? AND is_active = ?")
			So(got, ShouldEqual, "UPDATE models SET elo_rating = $1 WHERE id = $2 AND is_active = $3")
		})
		Convey("Row locks are requested", func() {
			So(postgresDialect.forUpdate, ShouldEqual, " FOR UPDATE")
		})
	})

	Convey("Given the sqlite dialect", t, func() {
		Convey("Queries pass through untouched", func() {
			So(sqliteDialect.rebind("SELECT ? , ?"), ShouldEqual, "SELECT ? , ?")
			So(sqliteDialect.forUpdate, ShouldBeEmpty)
		})
		Convey("The schema splits into statements", func() {
			stmts := sqliteDialect.statements()
			So(len(stmts), ShouldBeGreaterThan, 5)
			So(stmts[0], ShouldStartWith, "CREATE TABLE IF NOT EXISTS models")
		})
		Convey("DSNs gain pragmas unless they already carry a query", func() {
			So(sqliteDSN(":memory:"), ShouldContainSubstring, "foreign_keys(1)")
			So(sqliteDSN("file:x.db?mode=ro"), ShouldEqual, "file:x.db?mode=ro")
		})
	})

	Convey("Driver names resolve to dialects", t, func() {
		d, err := dialectFor("pgx")
		So(err, ShouldBeNil)
		So(d.name, ShouldEqual, "postgres")
		_, err = dialectFor("mysql")
		So(err, ShouldEqual, ErrUnknownDriver)
	})
}
