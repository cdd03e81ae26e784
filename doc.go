// Package nebula provides a lazily evaluated Table for extract and load
// work, the file codecs that read and write it, and a small HTTP connector
// for pulling tables out of JSON APIs.
//
// A Table is a handle over a row source. Transforms rebind the source
// instead of touching data, so nothing is read until rows are needed. A
// table read from a file or URL re-reads its origin on every pass until
// Materialize is called.
//
// # Quick Start
//
// Clean up a CSV export and write it out as Parquet:
//
//	import (
//	    "github.com/ajitpratap0/nebula-table/pkg/table"
//	)
//
//	tbl, err := table.FromCSV("people.csv.gz", table.CSVOptions{})
//	if err != nil {
//	    return err
//	}
//	if err := tbl.MatchColumns([]string{"first_name", "last_name", "email"}, table.MatchOptions{}); err != nil {
//	    return err
//	}
//	if err := tbl.Deduplicate([]string{"email"}, false); err != nil {
//	    return err
//	}
//	_, err = tbl.ToParquet("people.parquet", table.ParquetOptions{})
//
// Page through an API into a table:
//
//	api := connector.New("https://api.example.com/v1",
//	    connector.WithDataKey("data"),
//	    connector.WithPaginationKey("links.next"))
//	tbl, err := api.GetTable(ctx, "people", nil)
//
// # Key Packages
//
//	pkg/table         - Lazy Table, transforms and format codecs
//	pkg/connector     - APIConnector, OAuth2 client credentials, polling
//	pkg/compression   - gzip, zstd, s2 and lz4 streams chosen by file extension
//	pkg/models        - Column schema shared by Avro, Arrow and Parquet
//	pkg/config        - Settings loaded from YAML and NEBULA_TABLE_* variables
//	pkg/errors        - Typed errors
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus counters for codecs and requests
//	pkg/observability - Trace export and process resource usage
//
// # Formats
//
// CSV and TSV, zipped CSV, JSON arrays and JSON lines, Avro object
// container files, Parquet, Arrow IPC files and HTML tables. table.Open and
// Table.Save pick the codec from the file extension.
//
// # Command Line
//
// cmd/tablectl converts, inspects and fetches tables:
//
//	tablectl convert people.csv.gz people.parquet
//	tablectl head people.parquet -n 5
//	tablectl columns people.json
//	tablectl fetch https://api.example.com/v1/people people.csv --data-key data
package nebula
