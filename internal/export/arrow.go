package export

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/mcsolve/internal/sweep"
)

// gridSchema is the Arrow layout of a sweep grid, one row per point.
var gridSchema = arrow.NewSchema([]arrow.Field{
	{Name: "chain_length", Type: arrow.PrimitiveTypes.Int64},
	{Name: "chain_count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "discrepancy", Type: arrow.PrimitiveTypes.Float64},
	{Name: "elapsed_ns", Type: arrow.PrimitiveTypes.Int64},
}, nil)

// WriteArrow writes the report's grid points as a single-record Arrow IPC
// stream. Result vectors are not included.
func WriteArrow(w io.Writer, r *sweep.Report) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, gridSchema)
	defer b.Release()

	lengths := b.Field(0).(*array.Int64Builder)
	counts := b.Field(1).(*array.Int64Builder)
	discrepancies := b.Field(2).(*array.Float64Builder)
	elapsed := b.Field(3).(*array.Int64Builder)

	for _, p := range r.Points {
		lengths.Append(int64(p.ChainLength))
		counts.Append(int64(p.ChainCount))
		discrepancies.Append(p.Discrepancy)
		elapsed.Append(int64(p.Elapsed))
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(gridSchema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// ReadArrow decodes grid points from an Arrow IPC stream written by
// WriteArrow. Result vectors come back empty.
func ReadArrow(rd io.Reader) ([]sweep.Point, error) {
	ir, err := ipc.NewReader(rd, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("opening arrow stream: %w", err)
	}
	defer ir.Release()

	if !ir.Schema().Equal(gridSchema) {
		return nil, fmt.Errorf("unexpected arrow schema: %s", ir.Schema())
	}

	var points []sweep.Point
	for ir.Next() {
		rec := ir.Record()
		lengths := rec.Column(0).(*array.Int64)
		counts := rec.Column(1).(*array.Int64)
		discrepancies := rec.Column(2).(*array.Float64)
		elapsed := rec.Column(3).(*array.Int64)

		for i := 0; i < int(rec.NumRows()); i++ {
			points = append(points, sweep.Point{
				ChainLength: int(lengths.Value(i)),
				ChainCount:  int(counts.Value(i)),
				Discrepancy: discrepancies.Value(i),
				Elapsed:     time.Duration(elapsed.Value(i)),
			})
		}
	}
	if err := ir.Err(); err != nil {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	return points, nil
}
