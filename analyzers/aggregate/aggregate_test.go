package aggregate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virome-runner/jobs"
	"virome-runner/tools"
)

func fixtureResults(t *testing.T, dir string) []jobs.Result {
	t.Helper()
	return []jobs.Result{
		writeOutput(t, dir, tools.Seeker, "s2", "name\tprediction\tscore\nc9\tPhage\t0.9\n"),
		writeOutput(t, dir, tools.DeepVirFinder, "s1", "name\tlen\tscore\tpvalue\nc1\t500\t0.91\t0.01\nc2\t1500\t0.2\t0.6\n"),
		writeOutput(t, dir, tools.Seeker, "s1", "name\tprediction\tscore\nc2\tPhage\t0.7\nc1\tPhage\t0.8\nc3\tBacteria\t0.1\n"),
		writeOutput(t, dir, tools.DeepVirFinder, "s2", "name\tlen\tscore\tpvalue\nc9\t3000\t0.95\t0.001\n"),
	}
}

func TestAggregate(t *testing.T) {
	dir := t.TempDir()
	table, err := Aggregate(fixtureResults(t, dir), DefaultStages(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"sample", "record", "length", "dvf", "seeker", "viral_votes", "called", "confidence"}, table.Header())
	assert.Equal(t, [][]string{
		{"s1", "c1", "500", "viral", "phage", "2", "2", "1.000"},
		{"s1", "c2", "1500", "non-viral", "phage", "1", "2", "0.500"},
		{"s1", "c3", "0", "", "bacteria", "0", "1", "0.000"},
		{"s2", "c9", "3000", "viral", "phage", "2", "2", "1.000"},
	}, table.Records())
	assert.Len(t, table.Calls, 6)
}

func TestAggregateFilter(t *testing.T) {
	dir := t.TempDir()
	table, err := Aggregate(fixtureResults(t, dir), DefaultStages(), Options{MinLength: 1000, MinConfidence: 0.5})
	require.NoError(t, err)

	var kept []string
	for _, r := range table.Rows {
		kept = append(kept, r.Sample+"/"+r.Record)
	}
	assert.Equal(t, []string{"s1/c2", "s2/c9"}, kept)
}

func TestAggregateFillsLengthsFromContigs(t *testing.T) {
	dir := t.TempDir()
	fasta := filepath.Join(dir, "s1.fasta")
	require.NoError(t, os.WriteFile(fasta, []byte(">c1\nACGTACGT\n>c2\nACG\n"), 0o644))

	results := []jobs.Result{writeOutput(t, dir, tools.Seeker, "s1", "name\tprediction\tscore\nc1\tPhage\t0.8\nc2\tPhage\t0.8\n")}
	table, err := Aggregate(results, DefaultStages(), Options{MinLength: 5, Contigs: map[string]string{"s1": fasta}})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "c1", table.Rows[0].Record)
	assert.Equal(t, 8, table.Rows[0].Length)
}

func TestAggregateByteIdentical(t *testing.T) {
	dir := t.TempDir()
	results := fixtureResults(t, dir)

	write := func(name string, in []jobs.Result) []byte {
		table, err := Aggregate(in, DefaultStages(), Options{})
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, WriteCSV(table, path))
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		return b
	}

	first := write("a.csv", results)
	reversed := make([]jobs.Result, len(results))
	for i, r := range results {
		reversed[len(results)-1-i] = r
	}
	second := write("b.csv", reversed)
	third := write("a.csv", results)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestAggregateKeepsSucceededSamples(t *testing.T) {
	dir := t.TempDir()
	results := []jobs.Result{
		writeOutput(t, dir, tools.Seeker, "a", "name\tprediction\tscore\nc1\tPhage\t0.9\n"),
		{JobID: "seeker/b", Sample: "b", Tool: tools.Seeker, Status: jobs.StatusFailed, ExitCode: 1},
		{JobID: "seeker/c", Sample: "c", Tool: tools.Seeker, Status: jobs.StatusSkipped, Reason: "contigs not found"},
	}
	table, err := Aggregate(results, DefaultStages(), Options{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "a", table.Rows[0].Sample)
	assert.Equal(t, []tools.ID{tools.Seeker}, table.Tools)
}

func TestAggregateStageFailure(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	cases := map[Stage]Stages{
		StageReformat: {Reformat: func(jobs.Result) ([]Call, error) { return nil, boom }},
		StageCombine:  {Combine: func([]Call, Options) ([]Contig, error) { return nil, boom }},
		StagePivot:    {Pivot: func([]Contig, []tools.ID) (Table, error) { panic("boom") }},
		StageFilter:   {Filter: func(Table, Options) (Table, error) { return Table{}, boom }},
	}
	for stage, stages := range cases {
		t.Run(string(stage), func(t *testing.T) {
			_, err := Aggregate(fixtureResults(t, dir), stages, Options{})
			require.Error(t, err)

			var ae *Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, stage, ae.Stage)
			assert.Equal(t, stage, StageOf(err))
			assert.Contains(t, err.Error(), "boom")
		})
	}

	_, err := Aggregate([]jobs.Result{writeOutput(t, dir, tools.Seeker, "x", "id\nc1\n")}, DefaultStages(), Options{})
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, StageReformat, ae.Stage)
	assert.Equal(t, "x", ae.Sample)
	assert.Equal(t, tools.Seeker, ae.Tool)
}

func TestAggregatorWaitsForSample(t *testing.T) {
	dir := t.TempDir()
	results := fixtureResults(t, dir)

	var reformatted []string
	stages := Stages{Reformat: func(r jobs.Result) ([]Call, error) {
		reformatted = append(reformatted, r.JobID)
		return Reformat(r)
	}}
	a := NewAggregator(map[string]int{"s1": 2, "s2": 2}, stages, Options{})

	require.NoError(t, a.Add(results[0]))
	assert.Empty(t, reformatted)

	_, err := a.Finish()
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, StageBarrier, StageOf(err))

	require.NoError(t, a.Add(results[1]))
	assert.Empty(t, reformatted)
	require.NoError(t, a.Add(results[2]))
	assert.Equal(t, []string{"dvf/s1", "seeker/s1"}, reformatted)
	require.NoError(t, a.Add(results[3]))
	assert.Equal(t, []string{"dvf/s1", "seeker/s1", "dvf/s2", "seeker/s2"}, reformatted)

	table, err := a.Finish()
	require.NoError(t, err)
	assert.Len(t, table.Rows, 4)
}

func TestBarrier(t *testing.T) {
	b := NewBarrier(map[string]int{"a": 2})

	_, ok := b.Add(jobs.Result{Sample: "a", Tool: tools.Seeker, Status: "running"})
	assert.False(t, ok)

	_, ok = b.Add(jobs.Result{Sample: "a", Tool: tools.Seeker, Status: jobs.StatusSkipped})
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, b.Pending())

	out, ok := b.Add(jobs.Result{Sample: "a", Tool: tools.DeepVirFinder, Status: jobs.StatusFailed})
	require.True(t, ok)
	assert.Equal(t, []tools.ID{tools.DeepVirFinder, tools.Seeker}, []tools.ID{out[0].Tool, out[1].Tool})
	assert.True(t, b.Released("a"))
	assert.Empty(t, b.Pending())

	_, ok = b.Add(jobs.Result{Sample: "a", Tool: tools.Vibrant, Status: jobs.StatusSucceeded})
	assert.False(t, ok)
}

func TestWriteFormatted(t *testing.T) {
	dir := t.TempDir()
	table, err := Aggregate(fixtureResults(t, dir), DefaultStages(), Options{})
	require.NoError(t, err)

	paths, err := WriteFormatted(table, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{FormattedPath(dir, tools.DeepVirFinder), FormattedPath(dir, tools.Seeker)}, paths)

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "tool,sample,record,length,prediction,lifecycle,value,stat,stat_name\n"+
		"dvf,s1,c1,500,viral,,0.91,0.01,p\n"+
		"dvf,s1,c2,1500,non-viral,,0.2,0.6,p\n"+
		"dvf,s2,c9,3000,viral,,0.95,0.001,p\n", string(b))
}
