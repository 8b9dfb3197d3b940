package subject

// analysisPrompt asks the vision model for the structured subject
// breakdown that ParseResponse reads.
const analysisPrompt = `You are analyzing a photo taken in the field of a business advertisement.
The photo may contain many things: people, cars, trees, buildings, other signs.

1. List every visually distinct subject in the image.
2. Classify each subject as one of: business_sign, storefront, business_card,
   advertisement, vehicle_wrap, billboard, banner, unknown.
3. Pick the single subject the photographer most likely meant to capture.
4. Extract business fields from that subject ONLY. Ignore text on unrelated
   objects such as license plates, street signs or passing vehicles.

Respond with a single JSON object and nothing else:
{
  "detected_subjects": [
    {
      "type": "vehicle_wrap",
      "description": "white van with blue lettering on the side panel",
      "location": {"position": "center", "size_relative": "large"},
      "business_data": {
        "business_name": "",
        "phone_number": "",
        "website": "",
        "services": [],
        "address": ""
      },
      "text_content": ["every text fragment visible on this subject"],
      "confidence": 0.0
    }
  ],
  "primary_subject_index": 0,
  "other_objects": ["tree", "pedestrian"],
  "subject_isolation_success": true,
  "business_relevance_score": 0.0,
  "description": "one or two sentences describing the whole photo"
}

Use empty strings for unknown fields. confidence and business_relevance_score
are numbers between 0 and 1. Set primary_subject_index to null when no subject
carries business information.`
