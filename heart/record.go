// Package heart 提供患者体征记录、输入校验与特征编码
package heart

// Record 单次风险评估的患者输入
type Record struct {
	Age            int     `json:"age"`
	Sex            string  `json:"sex"`
	ChestPainType  string  `json:"chest_pain_type"`
	RestingBP      int     `json:"resting_bp"`
	Cholesterol    int     `json:"cholesterol"`
	FastingBS      string  `json:"fasting_bs"`
	RestingECG     string  `json:"resting_ecg"`
	MaxHR          int     `json:"max_hr"`
	ExerciseAngina string  `json:"exercise_angina"`
	Oldpeak        float64 `json:"oldpeak"`
	STSlope        string  `json:"st_slope"`
}

// 分类特征的固定编码，训练和推理共用同一套映射
var (
	sexCodes = map[string]float64{
		"F": 0,
		"M": 1,
	}
	chestPainCodes = map[string]float64{
		"TA":  0,
		"ATA": 1,
		"NAP": 2,
		"ASY": 3,
	}
	yesNoCodes = map[string]float64{
		"No":  0,
		"Yes": 1,
	}
	restingECGCodes = map[string]float64{
		"Normal": 0,
		"ST":     1,
		"LVH":    2,
	}
	stSlopeCodes = map[string]float64{
		"Up":   0,
		"Flat": 1,
		"Down": 2,
	}
)

// FeatureNames 返回特征向量的字段顺序
func FeatureNames() []string {
	return []string{
		"Age",
		"Sex",
		"ChestPainType",
		"RestingBP",
		"Cholesterol",
		"FastingBS",
		"RestingECG",
		"MaxHR",
		"ExerciseAngina",
		"Oldpeak",
		"ST_Slope",
	}
}

// Mappings 返回分类特征编码表的副本，作为模型文件的一部分持久化
func Mappings() map[string]map[string]float64 {
	src := map[string]map[string]float64{
		"Sex":            sexCodes,
		"ChestPainType":  chestPainCodes,
		"FastingBS":      yesNoCodes,
		"RestingECG":     restingECGCodes,
		"ExerciseAngina": yesNoCodes,
		"ST_Slope":       stSlopeCodes,
	}
	result := make(map[string]map[string]float64, len(src))
	for field, codes := range src {
		copied := make(map[string]float64, len(codes))
		for label, code := range codes {
			copied[label] = code
		}
		result[field] = copied
	}
	return result
}
