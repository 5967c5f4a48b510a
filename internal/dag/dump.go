package dag

import (
	"fmt"
	"strings"

	"github.com/ORNL/curifactory-go/internal/record"
)

// RecordString renders one record's trace for the diagnostic dump: each
// stage with leaf marking, its inputs and outputs with cached status, and
// any input records. Driven purely from the record arrays and the artifact
// table; nothing is recomputed or re-probed.
func (d *DAG) RecordString(recordIndex int) (string, error) {
	rec := d.Records[recordIndex]
	hash, err := rec.Hash()
	if err != nil {
		return "", fmt.Errorf("record %d: %w", recordIndex, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "==== %s hash: %s ====", rec.Name(), hash)

	for stageIndex, stageName := range rec.Stages {
		fmt.Fprintf(&b, "\nStage: %s", stageName)
		leaf, err := d.IsLeaf(rec, stageName)
		if err != nil {
			return "", err
		}
		if leaf {
			b.WriteString(" (leaf)")
		}

		if len(rec.StageInputs[stageIndex]) > 0 {
			b.WriteString("\n\tInputs:")
			for _, inputIndex := range rec.StageInputs[stageIndex] {
				if inputIndex == record.MissingArtifact {
					b.WriteString("\n\t\t(missing)")
					continue
				}
				artifact, err := d.Artifacts.Get(inputIndex)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&b, "\n\t\t%s", artifact.Name)
				if artifact.Cached {
					b.WriteString(" (cached)")
				}
			}
		}

		if len(rec.StageOutputs[stageIndex]) > 0 {
			b.WriteString("\n\tOutputs:")
			for _, outputIndex := range rec.StageOutputs[stageIndex] {
				artifact, err := d.Artifacts.Get(outputIndex)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&b, "\n\t\t%s", artifact.Name)
				if artifact.Cached {
					fmt.Fprintf(&b, " (cached) [%s]", artifact.Path)
				}
			}
		}
	}

	if len(rec.InputRecords) > 0 {
		b.WriteString("\n\tInput records:")
		for _, input := range rec.InputRecords {
			fmt.Fprintf(&b, "\n\t\t%s", input.Name())
		}
	}
	return b.String(), nil
}

// Dump renders the whole run map, one block per record.
func (d *DAG) Dump() (string, error) {
	var b strings.Builder
	for index := range d.Records {
		s, err := d.RecordString(index)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
