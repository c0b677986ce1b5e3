package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"speckle-inspector/internal/repository"
	"speckle-inspector/pkg/models"

	"gopkg.in/yaml.v3"
)

// batchFile is the YAML layout of a measurement batch. A bare list of
// measurements is accepted as well.
type batchFile struct {
	Measurements []models.Measurement `yaml:"measurements"`
}

func loadBatch(path string) ([]models.Measurement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	return parseBatch(data)
}

func parseBatch(data []byte) ([]models.Measurement, error) {
	var list []models.Measurement
	if err := yaml.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("batch contains no measurements")
		}
		return list, nil
	}

	var file batchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if len(file.Measurements) == 0 {
		return nil, fmt.Errorf("batch contains no measurements")
	}
	return file.Measurements, nil
}

func formatContrast(v float64) string {
	if v == models.SentinelContrast {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func printBatch(w io.Writer, response *models.BatchResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tRAW\tFILTERED\tREFERENCE\tCORRECTED\tNOTE")
	for _, o := range response.Outcomes {
		if o.Record == nil {
			fmt.Fprintf(tw, "%s\t\t\t\t\t%s\n", o.ImgName, o.Error)
			continue
		}
		r := o.Record.Result
		note := ""
		if len(r.Notes) > 0 {
			note = r.Notes[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.ImgName,
			formatContrast(r.RawContrast), formatContrast(r.FilteredContrast),
			formatContrast(r.ReferenceContrastFiltered), formatContrast(r.CorrectedContrast), note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d analysed, %d failed, %d persisted in %.1fs\n",
		response.Succeeded, response.Failed, response.Persisted, response.ProcessingTimeSec)
	return err
}

func printRows(w io.Writer, rows []repository.StoredRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tIMAGE\tCOLOR\tRAW\tFILTERED\tCORRECTED")
	for i, row := range rows {
		record, err := row.Record()
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%s\n",
			record.Timestamp.Format("2006-01-02 15:04:05"), record.Image.Name, record.Metadata["color"],
			formatContrast(record.Result.RawContrast), formatContrast(record.Result.FilteredContrast),
			formatContrast(record.Result.CorrectedContrast))
	}
	return tw.Flush()
}
