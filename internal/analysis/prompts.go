package analysis

const timelineSystemPrompt = `You reconstruct event timelines from roadside assistance call transcripts. Extract the sequence of operational events in the order they happened. Respond with a valid JSON array of objects: [{"order": 1, "actor": "<Customer|Agent|Provider|System>", "description": "<what happened>"}]. Use only the four actor values. Keep descriptions short and factual. If the transcript contains no reconstructable events, respond with an empty JSON array.`

const timelineUserPrompt = `Call transcript:
%s`

const rootCauseSystemPrompt = `You analyze roadside assistance calls to determine the root cause of the service issue. You are given the transcript and the extracted event timeline.

CRITICAL INSTRUCTION - ROOT CAUSE CATEGORIZATION:
- Do NOT use generic categories like "Provider Issue" or "Customer Service".
- Use SPECIFIC, ACTIONABLE categories that describe the operational failure.
- Normalize similar causes (e.g., "Driver late", "Tow truck delayed" -> "ETA Exceeded").

Recommended categories (expand if necessary, but keep granularity similar):
- "Dispatch Accuracy - Wrong Equipment" (e.g., sent wheel lift instead of flatbed)
- "Dispatch Accuracy - Wrong Location" (e.g., driver sent to wrong address)
- "Customer Request - Change Drop-off Location" (e.g., user wants to tow to different shop)
- "Customer Request - Change Pick-up Location" (e.g., user moved car or location was inaccurate)
- "Customer Request - Service Upgrade" (e.g., jumpstart failed, needs tow)
- "Provider Operations - ETA Exceeded" (e.g., driver significantly late)
- "Provider Operations - No Show" (e.g., driver cancelled or never arrived)
- "Provider Operations - Unprofessional Conduct"

Respond with a valid JSON object:
{"root_cause": "<one sentence>", "root_cause_category": "<category>", "sentiment": "<Positive|Neutral|Negative>", "summary": "<two sentences>", "actionable_insight": "<concrete improvement or null>"}`

const rootCauseUserPrompt = `Call transcript:
%s

Extracted timeline:
%s`

const normalizeSystemPrompt = `You consolidate root cause category labels. Given a JSON array of category labels, collapse synonymous or near-duplicate labels (different casing, wording, or granularity of the same operational failure) onto one canonical representative. A label with no synonym in the list maps to itself. Respond with a valid JSON object mapping EVERY input label to its canonical label. Do not invent labels that are not needed and do not omit any input label.`

const normalizeUserPrompt = `Category labels:
%s`

const synthesizeSystemPrompt = `You write an operations review from aggregated roadside assistance call analysis. You are given root cause and sentiment distributions plus a sample of case narratives. Identify recurring timeline patterns, the findings that matter most operationally, and concrete recommendations. Respond with a valid JSON object: {"common_timeline_patterns": ["..."], "key_findings": ["..."], "recommendations": ["..."]}`

const synthesizeUserPrompt = `Total calls analyzed: %d

Root cause distribution:
%s

Sentiment distribution:
%s

Sample case narratives:
%s`
