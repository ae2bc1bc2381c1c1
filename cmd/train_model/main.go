package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"cardioscope/db"
	"cardioscope/heart"
	"cardioscope/ml"
)

func main() {
	csvPath := flag.String("csv", "", "training dataset in CSV form, synthetic cohort when empty")
	outPath := flag.String("out", "./heart_model.json", "model artifact output path")
	trees := flag.Int("trees", 100, "number of trees in the forest")
	maxDepth := flag.Int("max_depth", 6, "max tree depth")
	minLeaf := flag.Int("min_leaf", 3, "min samples per leaf")
	testRatio := flag.Float64("test_ratio", 0.2, "held-out test ratio")
	seed := flag.Int64("seed", 42, "random seed")
	dbPath := flag.String("db", "", "sqlite path for the training log, skipped when empty")
	flag.Parse()

	records, labels, source, err := loadTrainingData(*csvPath, *seed)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}

	features := make([][]float64, len(records))
	for i, rec := range records {
		if fieldErrs := heart.Validate(rec); len(fieldErrs) > 0 {
			log.Fatalf("row %d rejected: %v", i, fieldErrs[0])
		}
		features[i] = heart.Encode(rec)
	}

	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, *testRatio, *seed)

	forest, err := ml.TrainForest(trainX, trainY, ml.ForestConfig{
		Trees:          *trees,
		MaxDepth:       *maxDepth,
		MinSamplesLeaf: *minLeaf,
		Seed:           *seed,
	})
	if err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	metrics := ml.Evaluate(forest, testX, testY)
	log.Printf("accuracy=%.3f precision=%.3f recall=%.3f train=%d test=%d",
		metrics.Accuracy, metrics.Precision, metrics.Recall, len(trainX), len(testX))

	artifact := &ml.Artifact{
		SchemaVersion: ml.ArtifactSchemaVersion,
		FeatureNames:  heart.FeatureNames(),
		Encoders:      heart.Mappings(),
		Forest:        forest,
		Source:        source,
		TrainedAt:     time.Now().UTC(),
		Metrics:       metrics,
		Rows:          len(records),
	}
	if err := ml.SaveArtifact(*outPath, artifact); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	if *dbPath != "" {
		if err := logTraining(*dbPath, artifact); err != nil {
			log.Printf("failed to record training run: %v", err)
		}
	}

	fmt.Printf("model saved to %s\n", *outPath)
}

func loadTrainingData(csvPath string, seed int64) ([]heart.Record, []int, string, error) {
	if csvPath == "" {
		records, labels := heart.SyntheticCohort(heart.DefaultCohortSize, uint64(seed))
		return records, labels, "synthetic", nil
	}

	records, labels, err := heart.LoadCSV(csvPath)
	if err != nil {
		return nil, nil, "", err
	}
	return records, labels, "csv", nil
}

func logTraining(path string, artifact *ml.Artifact) error {
	if err := db.InitDB(path); err != nil {
		return err
	}
	defer db.CloseDB()

	return db.LogTraining(db.TrainingLog{
		Source:     artifact.Source,
		Accuracy:   artifact.Metrics.Accuracy,
		Precision:  artifact.Metrics.Precision,
		Recall:     artifact.Metrics.Recall,
		TrainedAt:  artifact.TrainedAt,
		DataPoints: artifact.Rows,
	})
}
