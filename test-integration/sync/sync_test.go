package integration

import (
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/pgsearch-sync/database"
	"github.com/stacklok/pgsearch-sync/internal/status"
	"github.com/stacklok/pgsearch-sync/test-integration/sync/helpers"
)

const pendingKey = "movie_ids"

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("Incremental Sync", Label("postgres"), func() {
	var (
		db     *database.TestDB
		mr     *miniredis.Miniredis
		es     *helpers.FakeElasticsearch
		helper *helpers.SyncTestHelper

		filmA, filmB    uuid.UUID
		director, actor uuid.UUID
		drama           uuid.UUID
		seeded          time.Time
	)

	BeforeEach(func() {
		db = database.SetupTestDB(GinkgoTB())

		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		es = helpers.NewFakeElasticsearch()
		DeferCleanup(es.Close)

		seeded = time.Now().Add(-time.Hour).UTC()
		filmA, filmB = uuid.New(), uuid.New()
		director, actor = uuid.New(), uuid.New()
		drama = uuid.New()

		t := GinkgoTB()
		db.InsertFilmWork(t, database.FilmWork{ID: filmA, Title: "The Return", Rating: ptr(8.1), Modified: seeded})
		db.InsertFilmWork(t, database.FilmWork{ID: filmB, Title: "Quiet Hours", Description: ptr("A slow one"), Modified: seeded})
		db.InsertPerson(t, director, "Dana Reed", seeded)
		db.InsertPerson(t, actor, "Alex Stone", seeded)
		db.InsertGenre(t, drama, "Drama", "Serious stories", seeded)
		db.LinkPerson(t, filmA, director, "director")
		db.LinkPerson(t, filmA, actor, "actor")
		db.LinkGenre(t, filmA, drama)

		cfg := helpers.NewConfig(db, mr.Addr(), es.URL(), GinkgoTB().TempDir())
		helper, err = helpers.NewSyncTestHelper(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = helper.Stop()
		})
	})

	Context("First cycle", func() {
		It("should load every film work with its participants and genres", func() {
			Expect(helper.RunOnce()).To(Succeed())

			Expect(es.Count("movies")).To(Equal(2))
			Expect(es.Count("persons")).To(Equal(2))
			Expect(es.Count("genres")).To(Equal(1))

			movie := es.Document("movies", filmA.String())
			Expect(movie).NotTo(BeNil())
			Expect(movie["title"]).To(Equal("The Return"))
			Expect(movie["imdb_rating"]).To(BeNumerically("~", 8.1))
			Expect(movie["genre"]).To(ConsistOf("Drama"))
			Expect(movie["director"]).To(ConsistOf("Dana Reed"))
			Expect(movie["directors_names"]).To(ConsistOf("Dana Reed"))
			Expect(movie["actors_names"]).To(ConsistOf("Alex Stone"))
			Expect(movie["writers_names"]).To(BeEmpty())

			bare := es.Document("movies", filmB.String())
			Expect(bare).NotTo(BeNil())
			Expect(bare["imdb_rating"]).To(BeNil())
			Expect(bare["description"]).To(Equal("A slow one"))
			Expect(bare["actors"]).To(BeEmpty())

			Expect(es.Document("genres", drama.String())).To(HaveKeyWithValue("description", "Serious stories"))

			By("leaving no pending ids behind and persisting the watermark")
			Expect(mr.Exists(pendingKey)).To(BeFalse())
			Expect(mr.Exists("data")).To(BeTrue())

			st := helper.Tracker().Get()
			Expect(st.Phase).To(Equal(status.SyncPhaseComplete))
			Expect(st.Watermark).NotTo(BeNil())
			Expect(st.LastResult).NotTo(BeNil())
			Expect(st.LastResult.MoviesLoaded).To(Equal(2))
		})
	})

	Context("Subsequent cycles", func() {
		BeforeEach(func() {
			Expect(helper.RunOnce()).To(Succeed())
		})

		It("should not write anything when nothing changed", func() {
			requests := es.BulkRequests()

			Expect(helper.RunOnce()).To(Succeed())

			Expect(es.BulkRequests()).To(Equal(requests))
			Expect(helper.Tracker().Get().Message).To(Equal("No updates found"))
		})

		It("should rebuild the film works of a renamed person", func() {
			_, err := db.Pool.Exec(ctx,
				`UPDATE person SET full_name = $2, modified = $3 WHERE id = $1`,
				director, "Dana Reed-Hall", time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())

			Expect(helper.RunOnce()).To(Succeed())

			Expect(es.Document("persons", director.String())).To(HaveKeyWithValue("name", "Dana Reed-Hall"))
			Expect(es.Document("movies", filmA.String())["director"]).To(ConsistOf("Dana Reed-Hall"))
			Expect(es.Count("movies")).To(Equal(2))
			Expect(helper.Tracker().Get().LastResult.MoviesLoaded).To(Equal(1))
		})

		It("should drain ids left pending by an interrupted cycle", func() {
			missing := uuid.New()
			_, err := mr.SAdd(pendingKey, filmB.String(), missing.String())
			Expect(err).NotTo(HaveOccurred())

			db.Touch(GinkgoTB(), "genre", drama, time.Now().UTC())

			Expect(helper.RunOnce()).To(Succeed())

			Expect(mr.Exists(pendingKey)).To(BeFalse())
			Expect(es.Document("movies", missing.String())).To(BeNil())
			// filmA through the genre, filmB from the leftover set
			Expect(helper.Tracker().Get().LastResult.MoviesLoaded).To(Equal(2))
		})
	})

	Context("Running as a service", func() {
		It("should sync in the background and report healthy dependencies", func() {
			helper.Start()
			helper.WaitForServerReady(10 * time.Second)

			Eventually(func() status.SyncPhase {
				st, err := helper.GetStatus()
				if err != nil {
					return ""
				}
				return st.Phase
			}, 30*time.Second, 100*time.Millisecond).Should(Equal(status.SyncPhaseComplete))
			Expect(es.Count("movies")).To(Equal(2))

			code, readiness, err := helper.GetReadiness()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(readiness.Checks).To(HaveKeyWithValue("postgres", "ok"))
			Expect(readiness.Checks).To(HaveKeyWithValue("redis", "ok"))
			Expect(readiness.Checks).To(HaveKeyWithValue("elasticsearch", "ok"))
		})
	})
})
