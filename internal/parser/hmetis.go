// Package parser reads and writes the hMETIS hypergraph text format and the
// plain partition-assignment files that go with it (spec §6 "input/output
// formats"). Grounded on the teacher's pkg/scar/graph.go GraphReader: a
// bufio.Scanner walking whitespace-trimmed, comment-skipping lines,
// strconv-parsed fields, returning a plain error instead of panicking.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// weight flag bits from the hMETIS format's optional third header field.
const (
	flagHyperedgeWeights = 1
	flagVertexWeights    = 10
)

// ReadHMetis parses an hMETIS-format hypergraph: a header line
// "numHyperedges numVertices [fmt]" followed by one line per hyperedge
// (optionally weight-prefixed, then 1-indexed pin ids) and, when fmt
// requests vertex weights, one trailing weight line per vertex.
func ReadHMetis(r io.Reader) (*hgraph.Hypergraph, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	header, ok := nextDataLine(scanner)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", fmt.Errorf("empty file"))
	}
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return nil, errs.Newf(errs.InvalidInput, "parser.ReadHMetis", "malformed header %q", header)
	}
	numEdges, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
	}
	numVertices, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
	}
	fmtFlag := 0
	if len(fields) >= 3 {
		fmtFlag, err = strconv.Atoi(fields[2])
		if err != nil {
			return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
		}
	}
	hasEdgeWeights := fmtFlag == flagHyperedgeWeights || fmtFlag == flagHyperedgeWeights+flagVertexWeights
	hasVertexWeights := fmtFlag == flagVertexWeights || fmtFlag == flagHyperedgeWeights+flagVertexWeights

	h := hgraph.New(numVertices)

	for e := 0; e < numEdges; e++ {
		line, ok := nextDataLine(scanner)
		if !ok {
			return nil, errs.Newf(errs.InvalidInput, "parser.ReadHMetis", "expected %d hyperedges, found %d", numEdges, e)
		}
		fields := strings.Fields(line)
		weight := int64(1)
		start := 0
		if hasEdgeWeights {
			if len(fields) == 0 {
				return nil, errs.Newf(errs.InvalidInput, "parser.ReadHMetis", "hyperedge %d missing weight field", e)
			}
			w, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
			}
			weight = w
			start = 1
		}
		pins := make([]int32, 0, len(fields)-start)
		for _, f := range fields[start:] {
			id, err := strconv.Atoi(f)
			if err != nil {
				return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
			}
			pins = append(pins, int32(id-1)) // hMETIS pins are 1-indexed
		}
		if _, err := h.AddEdge(weight, pins); err != nil {
			return nil, err
		}
	}

	if hasVertexWeights {
		for v := 0; v < numVertices; v++ {
			line, ok := nextDataLine(scanner)
			if !ok {
				return nil, errs.Newf(errs.InvalidInput, "parser.ReadHMetis", "expected %d vertex weights, found %d", numVertices, v)
			}
			w, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
			if err != nil {
				return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
			}
			h.SetNodeWeight(v, w)
		}
	} else {
		for v := 0; v < numVertices; v++ {
			h.SetNodeWeight(v, 1)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.InvalidInput, "parser.ReadHMetis", err)
	}
	return h, nil
}

// WriteHMetis writes h back out in the same format ReadHMetis accepts,
// always emitting both weight sections (fmt=11) so round-tripping never
// loses weight information.
func WriteHMetis(w io.Writer, h *hgraph.Hypergraph) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d 11\n", h.NumEdges, h.NumNodes); err != nil {
		return err
	}
	for e := int32(0); e < int32(h.NumEdges); e++ {
		pins := h.Pins(e)
		fields := make([]string, 0, len(pins)+1)
		fields = append(fields, strconv.FormatInt(h.EdgeWeight(e), 10))
		for _, p := range pins {
			fields = append(fields, strconv.Itoa(int(p)+1))
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	for v := 0; v < h.NumNodes; v++ {
		if _, err := fmt.Fprintln(bw, h.NodeWeight(v)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadPartition parses one block id per line, one line per vertex in
// ascending vertex-id order -- the format KaHyPar-family tools use for
// `.part.<k>` files.
func ReadPartition(r io.Reader, numVertices int) ([]int32, error) {
	scanner := bufio.NewScanner(r)
	part := make([]int32, 0, numVertices)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b, err := strconv.Atoi(line)
		if err != nil {
			return nil, errs.New(errs.InvalidInput, "parser.ReadPartition", err)
		}
		part = append(part, int32(b))
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.InvalidInput, "parser.ReadPartition", err)
	}
	if len(part) != numVertices {
		return nil, errs.Newf(errs.InvalidInput, "parser.ReadPartition", "expected %d assignments, found %d", numVertices, len(part))
	}
	return part, nil
}

// WritePartition writes one block id per line in vertex-id order.
func WritePartition(w io.Writer, part []int32) error {
	bw := bufio.NewWriter(w)
	for _, b := range part {
		if _, err := fmt.Fprintln(bw, b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// nextDataLine returns the next non-empty, non-comment line, mirroring the
// teacher's blank-line/"#"-prefix skip in GraphReader.ReadFromFile.
func nextDataLine(scanner *bufio.Scanner) (string, bool) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}
