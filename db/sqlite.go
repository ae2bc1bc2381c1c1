package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cardioscope/heart"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        age INTEGER,
        sex VARCHAR(5),
        chest_pain_type VARCHAR(10),
        resting_bp INTEGER,
        cholesterol INTEGER,
        fasting_bs VARCHAR(5),
        resting_ecg VARCHAR(10),
        max_hr INTEGER,
        exercise_angina VARCHAR(5),
        oldpeak REAL,
        st_slope VARCHAR(10),
        label INTEGER,
        diagnosis VARCHAR(20),
        healthy_prob REAL,
        disease_prob REAL,
        confidence REAL,
        risk VARCHAR(10),
        model_source VARCHAR(20),
        created_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source VARCHAR(20),
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    `

	_, err = database.Exec(query)
	return err
}

// CloseDB closes the database handle
func CloseDB() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionRecord pairs the patient input with the stored assessment
type PredictionRecord struct {
	Input  heart.Record     `json:"input"`
	Result heart.Prediction `json:"result"`
}

// SavePrediction stores one completed assessment with its full input snapshot
func SavePrediction(rec heart.Record, pred heart.Prediction) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT OR REPLACE INTO predictions (
            id, age, sex, chest_pain_type, resting_bp, cholesterol,
            fasting_bs, resting_ecg, max_hr, exercise_angina, oldpeak, st_slope,
            label, diagnosis, healthy_prob, disease_prob, confidence, risk,
            model_source, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		pred.ID,
		rec.Age,
		rec.Sex,
		rec.ChestPainType,
		rec.RestingBP,
		rec.Cholesterol,
		rec.FastingBS,
		rec.RestingECG,
		rec.MaxHR,
		rec.ExerciseAngina,
		rec.Oldpeak,
		rec.STSlope,
		pred.Label,
		pred.Diagnosis,
		pred.HealthyProb,
		pred.DiseaseProb,
		pred.Confidence,
		string(pred.Risk),
		pred.ModelSource,
		pred.Timestamp,
	)
	return err
}

// RecentPredictions returns stored assessments, newest first
func RecentPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := database.Query(`
        SELECT id, age, sex, chest_pain_type, resting_bp, cholesterol,
               fasting_bs, resting_ecg, max_hr, exercise_angina, oldpeak, st_slope,
               label, diagnosis, healthy_prob, disease_prob, confidence, risk,
               model_source, created_at
        FROM predictions
        ORDER BY created_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		err := rows.Scan(
			&rec.Result.ID,
			&rec.Input.Age,
			&rec.Input.Sex,
			&rec.Input.ChestPainType,
			&rec.Input.RestingBP,
			&rec.Input.Cholesterol,
			&rec.Input.FastingBS,
			&rec.Input.RestingECG,
			&rec.Input.MaxHR,
			&rec.Input.ExerciseAngina,
			&rec.Input.Oldpeak,
			&rec.Input.STSlope,
			&rec.Result.Label,
			&rec.Result.Diagnosis,
			&rec.Result.HealthyProb,
			&rec.Result.DiseaseProb,
			&rec.Result.Confidence,
			&rec.Result.Risk,
			&rec.Result.ModelSource,
			&rec.Result.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountPredictions returns the number of stored assessments
func CountPredictions() (int, error) {
	if database == nil {
		return 0, errors.New("database not initialized")
	}
	var count int
	err := database.QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&count)
	return count, err
}

// RiskBreakdown returns assessment counts grouped by risk tier
func RiskBreakdown() (map[string]int, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`SELECT risk, COUNT(*) FROM predictions GROUP BY risk`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var risk string
		var count int
		if err := rows.Scan(&risk, &count); err != nil {
			return nil, err
		}
		breakdown[risk] = count
	}
	return breakdown, rows.Err()
}

type TrainingLog struct {
	Source     string    `json:"source"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

func LogTraining(entry TrainingLog) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_log (source, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?)
    `,
		entry.Source,
		entry.Accuracy,
		entry.Precision,
		entry.Recall,
		entry.TrainedAt,
		entry.DataPoints,
	)
	return err
}

func LoadTrainingLog() ([]TrainingLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT source, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var entry TrainingLog
		if err := rows.Scan(&entry.Source, &entry.Accuracy, &entry.Precision, &entry.Recall, &entry.TrainedAt, &entry.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
