package tkv

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

type envMetrics struct {
	set *metrics.Set

	readTxns  *metrics.Counter
	writeTxns *metrics.Counter
	commits   *metrics.Counter
	rollbacks *metrics.Counter
	cursors   *metrics.Counter
	puts      *metrics.Counter
	deletes   *metrics.Counter
	clears    *metrics.Counter
	decodeErr *metrics.Counter
}

func newEnvMetrics(env *Env) *envMetrics {
	set := metrics.NewSet()
	m := &envMetrics{
		set:       set,
		readTxns:  set.NewCounter(`tkv_txns_total{kind="read"}`),
		writeTxns: set.NewCounter(`tkv_txns_total{kind="write"}`),
		commits:   set.NewCounter(`tkv_commits_total`),
		rollbacks: set.NewCounter(`tkv_rollbacks_total`),
		cursors:   set.NewCounter(`tkv_cursors_opened_total`),
		puts:      set.NewCounter(`tkv_puts_total`),
		deletes:   set.NewCounter(`tkv_deletes_total`),
		clears:    set.NewCounter(`tkv_clears_total`),
		decodeErr: set.NewCounter(`tkv_decode_errors_total`),
	}
	set.NewGauge(`tkv_open_txns{kind="read"}`, func() float64 {
		return float64(env.ReaderCount.Load())
	})
	set.NewGauge(`tkv_open_txns{kind="write"}`, func() float64 {
		return float64(env.WriterCount.Load())
	})
	return m
}

// WritePrometheus writes the environment's counters in Prometheus text format.
func (env *Env) WritePrometheus(w io.Writer) {
	env.metrics.set.WritePrometheus(w)
}

type TableStats struct {
	Entries   int
	Depth     int
	DataSize  int64
	DataAlloc int64
}

// TableStats reports storage statistics of a table. On the Bolt backend this
// walks every page of the table, and the sizes only account for committed
// data.
func (tx *Tx) TableStats(tbl Table) (TableStats, error) {
	st, err := tx.table(tbl)
	if err != nil {
		return TableStats{}, err
	}
	s := st.Stats()
	return TableStats{
		Entries:   s.KeyN,
		Depth:     s.Depth,
		DataSize:  s.LeafInuse,
		DataAlloc: s.TotalAlloc(),
	}, nil
}
