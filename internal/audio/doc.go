// Package audio decodes pronunciation assets into PCM clips, synthesizes
// short tones, and plays clips through the system output device using
// oto/v3. Builds tagged nocgo get an output that always reports the device
// as unavailable.
package audio
