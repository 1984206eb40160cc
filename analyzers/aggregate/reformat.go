package aggregate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"virome-runner/jobs"
	"virome-runner/tools"
)

// reformatter turns one tool output table into calls. Sample and Tool are
// filled in by Reformat.
type reformatter func(f frame) ([]Call, error)

var reformatters = map[tools.ID]reformatter{
	tools.DeepVirFinder: reformatScore,
	tools.VirFinder:     reformatScore,
	tools.Seeker:        reformatSeeker,
	tools.VirSorter2:    reformatVirSorter2,
	tools.MetaPhinder:   reformatMetaPhinder,
	tools.ViralVerify:   reformatViralVerify,
	tools.Vibrant:       reformatVibrant,
	tools.Marvel:        reformatGeneric,
	tools.VirSorter:     reformatGeneric,
}

const viralScore = 0.5

// Reformat reads a succeeded job's output into calls. Other results carry no
// calls.
func Reformat(r jobs.Result) ([]Call, error) {
	if r.Status != jobs.StatusSucceeded {
		return nil, nil
	}
	fn, ok := reformatters[r.Tool]
	if !ok {
		return nil, fmt.Errorf("no reformatter for %s", r.Tool)
	}
	f, err := readFrame(r.Output)
	if err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, nil
	}
	calls, err := fn(f)
	if err != nil {
		return nil, err
	}
	for i := range calls {
		calls[i].Sample = r.Sample
		calls[i].Tool = r.Tool
	}
	return calls, nil
}

// firstField shortens a FASTA description to its identifier.
func firstField(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func reformatScore(f frame) ([]Call, error) {
	names, err := f.require("name")
	if err != nil {
		return nil, err
	}
	scores, err := f.require("score")
	if err != nil {
		return nil, err
	}
	lengths := f.col("len", "length")
	pvalues := f.col("pvalue")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		score, err := strconv.ParseFloat(scores[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: score %q: %w", f.path, i+1, scores[i], err)
		}
		length, err := atoi(at(lengths, i))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.path, i+1, err)
		}
		pred := "viral"
		if score < viralScore {
			pred = "non-viral"
		}
		calls = append(calls, Call{
			Record:     firstField(name),
			Length:     length,
			Prediction: pred,
			Value:      scores[i],
			Stat:       at(pvalues, i),
			StatName:   "p",
		})
	}
	return calls, nil
}

func reformatSeeker(f frame) ([]Call, error) {
	names, err := f.require("name")
	if err != nil {
		return nil, err
	}
	preds, err := f.require("prediction")
	if err != nil {
		return nil, err
	}
	scores := f.col("score")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		calls = append(calls, Call{
			Record:     firstField(name),
			Prediction: strings.ToLower(preds[i]),
			Value:      at(scores, i),
		})
	}
	return calls, nil
}

var partialSuffix = regexp.MustCompile(`\|\|.*$`)

func reformatVirSorter2(f frame) ([]Call, error) {
	names, err := f.require("seqname")
	if err != nil {
		return nil, err
	}
	groups, err := f.require("max_score_group")
	if err != nil {
		return nil, err
	}
	scores := f.col("max_score")
	lengths := f.col("length")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		length, err := atoi(at(lengths, i))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.path, i+1, err)
		}
		calls = append(calls, Call{
			Record:     partialSuffix.ReplaceAllString(name, ""),
			Length:     length,
			Prediction: groups[i],
			Value:      at(scores, i),
		})
	}
	return calls, nil
}

func reformatMetaPhinder(f frame) ([]Call, error) {
	names, err := f.require("#contigID", "contigID")
	if err != nil {
		return nil, err
	}
	classes, err := f.require("classification")
	if err != nil {
		return nil, err
	}
	ani := f.col("ANI [%]")
	sizes := f.col("size[bp]")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		length, err := atoi(at(sizes, i))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.path, i+1, err)
		}
		calls = append(calls, Call{
			Record:     firstField(name),
			Length:     length,
			Prediction: strings.ToLower(classes[i]),
			Stat:       at(ani, i),
			StatName:   "ani",
		})
	}
	return calls, nil
}

func reformatViralVerify(f frame) ([]Call, error) {
	names, err := f.require("Contig name")
	if err != nil {
		return nil, err
	}
	preds, err := f.require("Prediction")
	if err != nil {
		return nil, err
	}
	lengths := f.col("Length")
	scores := f.col("Score")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		length, err := atoi(at(lengths, i))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.path, i+1, err)
		}
		calls = append(calls, Call{
			Record:     firstField(name),
			Length:     length,
			Prediction: strings.ToLower(preds[i]),
			Value:      at(scores, i),
		})
	}
	return calls, nil
}

// reformatVibrant reads the genome quality table. Every listed scaffold is a
// viral call; type carries the lifecycle.
func reformatVibrant(f frame) ([]Call, error) {
	names, err := f.require("scaffold")
	if err != nil {
		return nil, err
	}
	types := f.col("type")
	quality := f.col("Quality")

	calls := make([]Call, 0, len(names))
	for i, name := range names {
		calls = append(calls, Call{
			Record:     firstField(name),
			Prediction: "viral",
			Lifecycle:  strings.ToLower(at(types, i)),
			Stat:       at(quality, i),
			StatName:   "quality",
		})
	}
	return calls, nil
}

// reformatGeneric reads tables already in the record,prediction[,length,value]
// shape, as written by wrapper scripts around tools with no tabular output.
func reformatGeneric(f frame) ([]Call, error) {
	records, err := f.require("record")
	if err != nil {
		return nil, err
	}
	preds, err := f.require("prediction")
	if err != nil {
		return nil, err
	}
	lengths := f.col("length")
	values := f.col("value")
	lifecycles := f.col("lifecycle")
	stats := f.col("stat")
	statNames := f.col("stat_name")

	calls := make([]Call, 0, len(records))
	for i, rec := range records {
		length, err := atoi(at(lengths, i))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.path, i+1, err)
		}
		calls = append(calls, Call{
			Record:     firstField(rec),
			Length:     length,
			Prediction: strings.ToLower(preds[i]),
			Lifecycle:  at(lifecycles, i),
			Value:      at(values, i),
			Stat:       at(stats, i),
			StatName:   at(statNames, i),
		})
	}
	return calls, nil
}
