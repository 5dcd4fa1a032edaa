package storage

import (
	"errors"
	"reflect"
	"testing"

	"evorunner/internal/model"
)

func TestGenomeCodecRoundTrip(t *testing.T) {
	input := model.Genome{
		VersionedRecord: Stamp(),
		ID:              "g1",
		LayerSizes:      []int{2, 2},
		Weights:         [][][]float64{{{0.25, -0.5}, {1, 0}}},
	}

	data, err := EncodeGenome(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", input, output)
	}
}

func TestDecodeGenomeRejectsVersionMismatch(t *testing.T) {
	stale := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		ID:              "g1",
	}
	data, err := EncodeGenome(stale)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeGenome(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeGenomeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeGenome([]byte(`{"id":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCourseSummaryCodecRoundTrip(t *testing.T) {
	input := model.CourseSummary{
		VersionedRecord: Stamp(),
		Name:            "corridor",
		Description:     "default obstacle corridor",
		BestFitness:     88,
	}
	data, err := EncodeCourseSummary(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeCourseSummary(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", input, output)
	}
}

func TestTopGenomesCodecChecksEmbeddedGenomeVersions(t *testing.T) {
	stale := []model.TopGenomeRecord{{
		Rank:    1,
		Fitness: 10,
		Genome: model.Genome{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: 42},
			ID:              "g1",
		},
	}}
	data, err := EncodeTopGenomes(stale)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTopGenomes(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestStampUsesCurrentVersions(t *testing.T) {
	v := Stamp()
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		t.Fatalf("unexpected stamp: %+v", v)
	}
}
