// Package stream reassembles incrementally streamed messages and tool calls.
//
// An Assembler keeps one buffer per open message id and one per open tool
// call id. Start events create a buffer, delta events append to it and end
// events emit the finished value and delete the buffer:
//
//	a := stream.NewAssembler()
//	for _, ev := range evts {
//		updates, err := a.Process(ev)
//		if err != nil {
//			return err
//		}
//		for _, u := range updates {
//			if u.Kind == stream.MessageFinished {
//				fmt.Println(u.Message.Content)
//			}
//		}
//	}
//
// TEXT_MESSAGE_CHUNK events are normalized to the same form, so a message sent
// as chunks assembles to the same value as one sent as start/content/end.
package stream
