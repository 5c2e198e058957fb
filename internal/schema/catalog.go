package schema

import "strconv"

// CurrentVersion is the schema version this build writes.
const CurrentVersion int64 = 7

// HistoricalEpoch is the lastUpdate backfilled into rows that predate the
// column: 1982-12-01T06:00:00Z, older than any real sync.
const HistoricalEpoch int64 = 407570400

// Table names.
const (
	TableAnime   = "anime"
	TableManga   = "manga"
	TableFriends = "friends"
	TableProfile = "profile"
)

func surrogate() Column          { return Column{Name: "_id", Type: "INTEGER", PrimaryKey: true} }
func integer(name string) Column { return Column{Name: name, Type: "INTEGER"} }
func varchar(name string) Column { return Column{Name: name, Type: "VARCHAR"} }
func double(name string) Column  { return Column{Name: name, Type: "DOUBLE"} }
func unique(c Column) Column {
	c.Unique = true
	return c
}

var (
	dirtyColumn      = Column{Name: "dirty", Type: "BOOLEAN", Default: "0"}
	lastUpdateColumn = Column{
		Name: "lastUpdate", Type: "INTEGER", NotNull: true,
		Default: strconv.FormatInt(HistoricalEpoch, 10),
	}
)

// v1 list columns shared by anime and manga, minus the progress counters.
func listColumns() []Column {
	return []Column{
		surrogate(),
		integer("recordID"),
		varchar("recordName"),
		varchar("recordType"),
		varchar("imageUrl"),
		varchar("recordStatus"),
		varchar("myStatus"),
		varchar("memberScore"),
		integer("myScore"),
		varchar("synopsis"),
	}
}

var (
	animeV1 = Table{Name: TableAnime, Columns: append(listColumns(),
		integer("episodesWatched"),
		integer("episodesTotal"),
	)}
	animeV2 = animeV1.With(dirtyColumn)

	mangaV3 = Table{Name: TableManga, Columns: append(listColumns(),
		integer("chaptersRead"),
		integer("chaptersTotal"),
		integer("volumesRead"),
		integer("volumesTotal"),
		dirtyColumn,
	)}

	animeV4 = animeV2.With(lastUpdateColumn)
	mangaV4 = mangaV3.With(lastUpdateColumn)

	animeV5 = animeV4.Replace(Column{Name: "memberScore", Type: "FLOAT"})
	mangaV5 = mangaV4.Replace(Column{Name: "memberScore", Type: "FLOAT"})

	friendsV6 = Table{Name: TableFriends, Columns: []Column{
		surrogate(),
		varchar("username"),
		varchar("avatar_url"),
		varchar("last_online"),
		varchar("friend_since"),
	}}

	profileV6 = Table{Name: TableProfile, Columns: []Column{
		surrogate(),
		varchar("username"),
		varchar("avatar_url"),
		varchar("birthday"),
		varchar("location"),
		varchar("website"),
		integer("comments"),
		integer("forum_posts"),
		varchar("last_online"),
		varchar("gender"),
		varchar("join_date"),
		varchar("access_rank"),
		integer("anime_list_views"),
		integer("manga_list_views"),
		varchar("anime_time_days"),
		double("anime_time_days_d"),
		integer("anime_watching"),
		integer("anime_completed"),
		integer("anime_on_hold"),
		integer("anime_dropped"),
		integer("anime_plan_to_watch"),
		integer("anime_total_entries"),
		varchar("manga_time_days"),
		double("manga_time_days_d"),
		integer("manga_reading"),
		integer("manga_completed"),
		integer("manga_on_hold"),
		integer("manga_dropped"),
		integer("manga_plan_to_read"),
		integer("manga_total_entries"),
	}}

	// Anime is the current anime table.
	Anime = animeV5.Replace(unique(integer("recordID")))
	// Manga is the current manga table.
	Manga = mangaV5.Replace(unique(integer("recordID")))
	// Friends is the current friends table.
	Friends = friendsV6.Replace(unique(varchar("username")))
	// Profile is the current profile table.
	Profile = profileV6.
		Without("anime_time_days_d", "manga_time_days_d").
		Replace(
			unique(varchar("username")),
			double("anime_time_days"),
			double("manga_time_days"),
		)
)

// Tables returns the current table descriptors in creation order.
func Tables() []Table {
	return []Table{Anime, Manga, Friends, Profile}
}

// Lookup returns the current descriptor for a table name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Steps returns the upgrade history in increasing version order.
func Steps() []Step {
	return []Step{
		{
			Version:     1,
			Description: "anime list",
			Actions:     []Action{CreateTable{Table: animeV1}},
		},
		{
			Version:     2,
			Description: "dirty flag on anime",
			Actions:     []Action{AddColumn{Table: TableAnime, Column: dirtyColumn}},
		},
		{
			Version:     3,
			Description: "manga list",
			Actions:     []Action{CreateTable{Table: mangaV3}},
		},
		{
			Version:     4,
			Description: "lastUpdate on list tables",
			Actions: []Action{
				AddColumn{Table: TableAnime, Column: lastUpdateColumn},
				AddColumn{Table: TableManga, Column: lastUpdateColumn},
			},
		},
		{
			Version:     5,
			Description: "numeric member score",
			Actions: []Action{
				RebuildTable{Old: animeV4, New: animeV5},
				RebuildTable{Old: mangaV4, New: mangaV5},
			},
		},
		{
			Version:     6,
			Description: "friends and profile",
			Actions: []Action{
				CreateTable{Table: friendsV6},
				CreateTable{Table: profileV6},
			},
		},
		{
			Version:     7,
			Description: "unique natural keys, numeric time-days",
			Actions: []Action{
				RebuildTable{Old: profileV6, New: Profile},
				RebuildTable{Old: friendsV6, New: Friends},
				RebuildTable{Old: animeV5, New: Anime},
				RebuildTable{Old: mangaV5, New: Manga},
			},
		},
	}
}
