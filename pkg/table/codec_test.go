package table

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/testutil"
)

type codecSuite struct {
	testutil.CodecSuite
}

func TestCodecs(t *testing.T) {
	suite.Run(t, new(codecSuite))
}

func (s *codecSuite) bob() *Table {
	tbl, err := New([]map[string]any{{"first": "Bob", "last": "Smith"}})
	s.Require().NoError(err)
	return tbl
}

// typed has one column per inferred type and a row of nils
func (s *codecSuite) typed() *Table {
	tbl, err := FromRows(
		[]string{"id", "name", "score", "active"},
		[][]any{
			{int64(1), "Bob", 1.5, true},
			{int64(2), "Anna", 2.25, false},
			{nil, nil, nil, nil},
		})
	s.Require().NoError(err)
	return tbl
}

func (s *codecSuite) typedRows() []Row {
	return []Row{
		{"id": int64(1), "name": "Bob", "score": 1.5, "active": true},
		{"id": int64(2), "name": "Anna", "score": 2.25, "active": false},
		{"id": nil, "name": nil, "score": nil, "active": nil},
	}
}

func (s *codecSuite) rows(tbl *Table) []Row {
	rows, err := tbl.Rows()
	s.Require().NoError(err)
	return rows
}

func (s *codecSuite) TestCSVRoundTrip() {
	for _, name := range []string{"people.csv", "people.csv.gz", "people.csv.zst", "people.tsv"} {
		s.Run(name, func() {
			path, err := s.bob().Save(s.Path(name))
			s.Require().NoError(err)
			s.Equal(s.Path(name), path)

			back, err := Open(path)
			s.Require().NoError(err)
			s.Equal([]Row{{"first": "Bob", "last": "Smith"}}, s.rows(back))
		})
	}
}

func (s *codecSuite) TestCSVTempFile() {
	path, err := s.bob().ToCSV("", CSVOptions{})
	s.Require().NoError(err)
	s.Equal(s.Dir(), filepath.Dir(path))
	s.True(strings.HasSuffix(path, ".csv"))

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal("first,last\nBob,Smith\n", string(data))
}

func (s *codecSuite) TestCSVString() {
	out, err := s.typed().ToCSVString(CSVOptions{Delimiter: ';'})
	s.Require().NoError(err)
	s.Equal("id;name;score;active\n1;Bob;1.5;true\n2;Anna;2.25;false\n;;;\n", out)

	out, err = s.bob().ToCSVString(CSVOptions{NoHeader: true})
	s.Require().NoError(err)
	s.Equal("Bob,Smith\n", out)

	tbl, err := FromCSVString("\ufeffa,b\n1\n2,3\n", CSVOptions{})
	s.Require().NoError(err)
	s.Equal([]Row{{"a": "1", "b": ""}, {"a": "2", "b": "3"}}, s.rows(tbl))

	_, err = FromCSVString("  ", CSVOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeValue))

	_, err = FromCSVString("a,a\n1,2\n", CSVOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeConflict))
}

func (s *codecSuite) TestCSVExplicitHeader() {
	path := s.CreateFile("raw.csv", []byte("Bob,Smith\nAnna,Jones\n"))
	tbl, err := FromCSV(path, CSVOptions{Header: []string{"first", "last"}})
	s.Require().NoError(err)

	n, err := tbl.NumRows()
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *codecSuite) TestCSVEmptyAndMissing() {
	_, err := FromCSV(s.CreateFile("empty.csv", nil), CSVOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeValue))

	_, err = FromCSV(s.Path("missing.csv"), CSVOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = FromCSV(s.Dir(), CSVOptions{})
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestCSVEmptyTableRoundTrip() {
	path, err := Empty().ToCSV(s.Path("none.csv"), CSVOptions{})
	s.Require().NoError(err)

	back, err := FromCSV(path, CSVOptions{})
	s.Require().NoError(err)
	n, err := back.NumRows()
	s.Require().NoError(err)
	s.Equal(0, n)
	s.Empty(columnsOf(s.T(), back))
}

func (s *codecSuite) TestAppendCSV() {
	path := s.Path("log.csv")
	s.Require().NoError(s.bob().AppendCSV(path, CSVOptions{}))
	s.Require().NoError(s.bob().AppendCSV(path, CSVOptions{}))

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal("first,last\nBob,Smith\nBob,Smith\n", string(data))
}

func (s *codecSuite) TestZipCSV() {
	path, err := s.bob().ToZipCSV(s.Path("people.zip"), "", CSVOptions{})
	s.Require().NoError(err)

	back, err := FromCSV(path, CSVOptions{})
	s.Require().NoError(err)
	s.Equal([]Row{{"first": "Bob", "last": "Smith"}}, s.rows(back))

	back, err = Open(path)
	s.Require().NoError(err)
	s.Equal([]Row{{"first": "Bob", "last": "Smith"}}, s.rows(back))
}

func (s *codecSuite) TestJSONRoundTrip() {
	for _, opts := range []JSONOptions{{}, {LineDelimited: true}} {
		path, err := s.typed().ToJSON("", opts)
		s.Require().NoError(err)

		back, err := FromJSON(path, JSONOptions{})
		s.Require().NoError(err)
		s.Equal([]string{"id", "name", "score", "active"}, columnsOf(s.T(), back))
		s.Equal(s.typedRows(), s.rows(back))
	}
}

func (s *codecSuite) TestJSONHeaderUnion() {
	path := s.CreateFile("mixed.jsonl", []byte(`{"b":1,"a":"x"}
{"c":[1,2],"a":"y"}
`))
	tbl, err := FromJSON(path, JSONOptions{})
	s.Require().NoError(err)
	s.Equal([]string{"b", "a", "c"}, columnsOf(s.T(), tbl))
	s.Equal([]Row{
		{"a": "x", "b": int64(1), "c": nil},
		{"a": "y", "b": nil, "c": []any{int64(1), int64(2)}},
	}, s.rows(tbl))

	bad := s.CreateFile("bad.json", []byte(`[{"a":1},`))
	tbl, err = FromJSON(bad, JSONOptions{})
	s.Require().NoError(err)
	_, err = tbl.Rows()
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestAvroRoundTrip() {
	for _, codec := range []string{"null", "deflate", "snappy"} {
		s.Run(codec, func() {
			path, err := s.typed().ToAvro(s.Path(codec+".avro"), AvroOptions{Codec: codec})
			s.Require().NoError(err)

			back, err := FromAvro(path)
			s.Require().NoError(err)
			s.Equal(s.typedRows(), s.rows(back))
		})
	}
}

func (s *codecSuite) TestAvroRestoresColumnNames() {
	tbl, err := FromRows([]string{"first name", "1st", "first_name"}, [][]any{{"a", "b", "c"}})
	s.Require().NoError(err)

	path, err := tbl.ToAvro("", AvroOptions{Codec: "deflate", CompressionLevel: 5})
	s.Require().NoError(err)

	back, err := FromAvro(path)
	s.Require().NoError(err)
	s.Equal([]string{"first name", "1st", "first_name"}, columnsOf(s.T(), back))
	s.Equal([]Row{{"first name": "a", "1st": "b", "first_name": "c"}}, s.rows(back))
}

func (s *codecSuite) TestAvroCompressionLevel() {
	header := []string{"id", "city", "note"}
	cities := []string{"Lisbon", "Oslo", "Quito", "Perth", "Tunis"}
	rows := make([][]any, 5000)
	for i := range rows {
		rows[i] = []any{int64(i), cities[i%len(cities)], fmt.Sprintf("order %d shipped from warehouse %d", i, i%13)}
	}
	tbl, err := FromRows(header, rows)
	s.Require().NoError(err)

	sizes := map[int]int64{}
	for _, level := range []int{1, 9} {
		path, err := tbl.ToAvro(s.Path(fmt.Sprintf("level%d.avro", level)), AvroOptions{Codec: "deflate", CompressionLevel: level})
		s.Require().NoError(err)
		info, err := os.Stat(path)
		s.Require().NoError(err)
		sizes[level] = info.Size()

		back, err := FromAvro(path)
		s.Require().NoError(err)
		n, err := back.NumRows()
		s.Require().NoError(err)
		s.Equal(5000, n)
	}
	s.Less(sizes[9], sizes[1])
}

func (s *codecSuite) TestAvroIntRange() {
	schema := `{"type":"record","name":"Counts","fields":[{"name":"n","type":"int"}]}`

	tbl, err := FromRows([]string{"n"}, [][]any{{int64(2147483647)}, {int64(-2147483648)}})
	s.Require().NoError(err)
	_, err = tbl.ToAvro("", AvroOptions{Schema: schema})
	s.Require().NoError(err)

	for _, v := range []int64{2147483648, -2147483649, 3000000000} {
		tbl, err := FromRows([]string{"n"}, [][]any{{v}})
		s.Require().NoError(err)
		_, err = tbl.ToAvro("", AvroOptions{Schema: schema})
		s.True(errors.IsType(err, errors.ErrorTypeValue), "value %d", v)
		s.ErrorContains(err, "overflows avro int")
	}
}

func (s *codecSuite) TestCompressedRoundTrip() {
	tests := []struct {
		name string
		tbl  func() *Table
		want []Row
	}{
		{name: "people.json.gz", tbl: s.typed, want: s.typedRows()},
		{name: "people.jsonl.gz", tbl: s.typed, want: s.typedRows()},
		{name: "people.avro.gz", tbl: s.typed, want: s.typedRows()},
		{name: "people.html.gz", tbl: s.bob, want: []Row{{"first": "Bob", "last": "Smith"}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			path, err := tt.tbl().Save(s.Path(tt.name))
			s.Require().NoError(err)

			data, err := os.ReadFile(path)
			s.Require().NoError(err)
			s.Require().Greater(len(data), 2)
			s.Equal([]byte{0x1f, 0x8b}, data[:2])

			back, err := Open(path)
			s.Require().NoError(err)
			s.Equal(tt.want, s.rows(back))
		})
	}
}

func (s *codecSuite) TestAvroExplicitSchema() {
	tbl, err := FromRows([]string{"id", "name"}, [][]any{{"7", "Bob"}, {"8", nil}})
	s.Require().NoError(err)

	schema := `{"type":"record","name":"Person","fields":[
		{"name":"id","type":"long"},
		{"name":"name","type":["null","string"],"default":null}]}`
	path, err := tbl.ToAvro("", AvroOptions{Schema: schema})
	s.Require().NoError(err)

	back, err := FromAvro(path)
	s.Require().NoError(err)
	s.Equal([]Row{{"id": int64(7), "name": "Bob"}, {"id": int64(8), "name": nil}}, s.rows(back))

	tbl, err = FromRows([]string{"id"}, [][]any{{nil}})
	s.Require().NoError(err)
	_, err = tbl.ToAvro("", AvroOptions{Schema: schema})
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestAvroOptionErrors() {
	_, err := s.bob().ToAvro("", AvroOptions{Codec: "bzip2"})
	s.True(errors.IsType(err, errors.ErrorTypeCapability))

	_, err = s.bob().ToAvro("", AvroOptions{Codec: "zstandard"})
	s.True(errors.IsType(err, errors.ErrorTypeCapability))

	_, err = s.bob().ToAvro("", AvroOptions{Codec: "lzma"})
	s.True(errors.IsType(err, errors.ErrorTypeValue))

	_, err = s.bob().ToAvro("", AvroOptions{CompressionLevel: 10})
	s.True(errors.IsType(err, errors.ErrorTypeValue))

	bad := s.CreateFile("bad.avro", []byte("not avro"))
	tbl, err := FromAvro(bad)
	s.Require().NoError(err)
	_, err = tbl.Rows()
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestHTML() {
	out, err := s.bob().ToHTMLString(HTMLOptions{Caption: "People", Class: "grid"})
	s.Require().NoError(err)
	s.Contains(out, `<table class="grid">`)
	s.Contains(out, "<caption>People</caption>")
	s.Contains(out, "<th>first</th><th>last</th>")
	s.Contains(out, "<td>Bob</td><td>Smith</td>")

	back, err := FromHTMLString(out)
	s.Require().NoError(err)
	s.Equal([]Row{{"first": "Bob", "last": "Smith"}}, s.rows(back))

	path, err := s.bob().Save(s.Path("people.html"))
	s.Require().NoError(err)
	back, err = Open(path)
	s.Require().NoError(err)
	s.Equal([]Row{{"first": "Bob", "last": "Smith"}}, s.rows(back))

	_, err = FromHTMLString("<p>no table here</p>")
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestArrowRecord() {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(s.T(), 0)

	rec, err := s.typed().ToArrow(mem)
	s.Require().NoError(err)
	s.EqualValues(3, rec.NumRows())
	s.EqualValues(4, rec.NumCols())

	back, err := FromArrow(rec)
	rec.Release()
	s.Require().NoError(err)
	s.Equal(s.typedRows(), s.rows(back))

	_, err = FromArrow(nil)
	s.True(errors.IsType(err, errors.ErrorTypeValue))
}

func (s *codecSuite) TestArrowFileRoundTrip() {
	path, err := s.typed().Save(s.Path("typed.arrow"))
	s.Require().NoError(err)

	back, err := Open(path)
	s.Require().NoError(err)
	s.Equal(s.typedRows(), s.rows(back))
}

func (s *codecSuite) TestParquetRoundTrip() {
	for _, codec := range []string{"", "gzip", "zstd", "none"} {
		s.Run("codec "+codec, func() {
			path, err := s.typed().ToParquet("", ParquetOptions{Compression: codec})
			s.Require().NoError(err)
			s.True(strings.HasSuffix(path, ".parquet"))

			back, err := FromParquet(path)
			s.Require().NoError(err)
			s.Equal([]string{"id", "name", "score", "active"}, columnsOf(s.T(), back))
			s.Equal(s.typedRows(), s.rows(back))
		})
	}

	_, err := s.bob().ToParquet("", ParquetOptions{Compression: "lzo"})
	s.True(errors.IsType(err, errors.ErrorTypeCapability))
}

func (s *codecSuite) TestOpenUnsupported() {
	_, err := Open(s.CreateFile("data.xyz", []byte("x")))
	s.True(errors.IsType(err, errors.ErrorTypeCapability))

	_, err = s.bob().Save(s.Path("data.xyz"))
	s.True(errors.IsType(err, errors.ErrorTypeCapability))
}

func (s *codecSuite) TestMaterializeToFile() {
	src := s.typed()
	calls := 0
	s.Require().NoError(src.AddColumn("tag", func(Row) any {
		calls++
		return "t"
	}))

	path, err := src.MaterializeToFile("")
	s.Require().NoError(err)
	s.Equal(s.Dir(), filepath.Dir(path))
	s.Equal(3, calls)

	rows := s.rows(src)
	s.Equal(3, calls)
	s.Len(rows, 3)
	s.Equal([]string{"id", "name", "score", "active", "tag"}, columnsOf(s.T(), src))
	s.Equal("t", rows[0]["tag"])
}

func TestURLSourceIsLazyUntilMaterialized(t *testing.T) {
	testutil.TestSettings(t)
	srv := testutil.NewCountingServer(t, "text/csv", []byte("first,last\nBob,Smith\n"))

	lazy, err := FromCSV(srv.URL+"/people.csv", CSVOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, srv.Hits())

	rowsOf(t, lazy)
	rowsOf(t, lazy)
	assert.EqualValues(t, 2, srv.Hits())

	tbl, err := FromCSV(srv.URL+"/people.csv?token=x", CSVOptions{})
	require.NoError(t, err)
	require.NoError(t, tbl.Materialize())
	assert.EqualValues(t, 3, srv.Hits())

	assert.Equal(t, []Row{{"first": "Bob", "last": "Smith"}}, rowsOf(t, tbl))
	assert.Equal(t, []Row{{"first": "Bob", "last": "Smith"}}, rowsOf(t, tbl))
	assert.EqualValues(t, 3, srv.Hits())
}

func TestURLErrorStatus(t *testing.T) {
	testutil.TestSettings(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tbl, err := FromJSON(srv.URL+"/missing.json", JSONOptions{})
	require.NoError(t, err)
	_, err = tbl.Rows()
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))
}
