package model

// Fixed shares of a question's max points for the seven marks dimensions.
// They sum to 1.0 so the dimension maxima always sum to maxPoints.
const (
	ShareConceptAccuracy  = 0.25
	ShareLogicalReasoning = 0.20
	SharePointsCoverage   = 0.15
	ShareKeywordAccuracy  = 0.10
	ShareStructure        = 0.10
	ShareLength           = 0.10
	ShareOriginalThought  = 0.10
)

// Fixed shares for the four diagram dimensions. The alignment dimension
// absorbs whatever remainder the other three leave.
const (
	ShareComponentPresence = 0.375
	ShareLabelAccuracy     = 0.25
	ShareLogicalFlow       = 0.25
)

// EmptyMarksDistribution returns a zero-awarded distribution whose dimension
// maxima are the fixed proportional split of maxPoints. It is the safe
// default substituted when the marks backend fails or returns garbage.
func EmptyMarksDistribution(maxPoints int) MarksDistribution {
	mp := float64(maxPoints)
	return MarksDistribution{
		ConceptAccuracy:  SubScore{Max: ShareConceptAccuracy * mp},
		LogicalReasoning: SubScore{Max: ShareLogicalReasoning * mp},
		PointsCoverage:   SubScore{Max: SharePointsCoverage * mp},
		KeywordAccuracy:  SubScore{Max: ShareKeywordAccuracy * mp},
		Structure:        SubScore{Max: ShareStructure * mp},
		Length:           SubScore{Max: ShareLength * mp},
		OriginalThought:  SubScore{Max: ShareOriginalThought * mp},
		Total:            SubScore{Max: mp},
	}
}

// EmptyDiagramEvaluation returns a zero-awarded diagram evaluation with the
// fixed proportional maxima, listing every required component as missing.
func EmptyDiagramEvaluation(maxPoints int, requiredComponents []string) DiagramEvaluation {
	mp := float64(maxPoints)
	comp := ShareComponentPresence * mp
	label := ShareLabelAccuracy * mp
	flow := ShareLogicalFlow * mp
	return DiagramEvaluation{
		ComponentPresence:    SubScore{Max: comp},
		LabelAccuracy:        SubScore{Max: label},
		LogicalFlow:          SubScore{Max: flow},
		ExplanationAlignment: SubScore{Max: mp - comp - label - flow},
		Total:                SubScore{Max: mp},
		MissingComponents:    append([]string(nil), requiredComponents...),
	}
}
