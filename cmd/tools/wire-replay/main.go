// Command wire-replay replays a packet capture of a headset streaming
// session. TCP payloads destined for the stream port are reassembled in
// capture order into the multiplexed byte stream, then either decoded
// locally into per-sensor frame files or forwarded to a live receiver.
//
// Retransmissions and reordering are not handled; captures taken on a
// quiet LAN segment decode cleanly in practice.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/ml2raw/internal/mlraw/mux"
)

var (
	pcapFile  = flag.String("pcap", "", "packet capture file to replay (required)")
	port      = flag.Int("port", 5001, "TCP destination port carrying the stream")
	forward   = flag.String("addr", "", "forward the stream to this TCP address instead of decoding locally")
	speed     = flag.Float64("speed", 0, "pace forwarding at this multiple of capture timing (0 = as fast as possible)")
	outputDir = flag.String("out", "ml2_replay", "output directory for locally decoded frames")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		fmt.Fprintf(os.Stderr, "usage: wire-replay -pcap capture.pcap [-port 5001] [-addr host:port] [-out dir]\n")
		os.Exit(1)
	}

	segments, err := extractStream(*pcapFile, uint16(*port))
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	if len(segments) == 0 {
		log.Fatalf("no TCP payloads for port %d in %s", *port, *pcapFile)
	}

	var total int
	for _, seg := range segments {
		total += len(seg.payload)
	}
	log.Printf("reassembled %d segments (%d bytes) from %s", len(segments), total, *pcapFile)

	if *forward != "" {
		if err := forwardStream(segments, *forward, *speed); err != nil {
			log.Fatalf("forwarding failed: %v", err)
		}
		return
	}
	if err := decodeStream(segments, *outputDir); err != nil {
		log.Fatalf("decoding failed: %v", err)
	}
}

type segment struct {
	ts      time.Time
	payload []byte
}

// extractStream collects TCP payloads destined for port, in capture
// order.
func extractStream(path string, port uint16) ([]segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening capture %s: %w", path, err)
	}

	var segments []segment
	source := gopacket.NewPacketSource(r, r.LinkType())
	for packet := range source.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || uint16(tcp.DstPort) != port || len(tcp.Payload) == 0 {
			continue
		}
		segments = append(segments, segment{
			ts:      packet.Metadata().Timestamp,
			payload: tcp.Payload,
		})
	}
	return segments, nil
}

// forwardStream dials addr and re-sends the stream, optionally pacing
// writes to the capture's original inter-packet gaps.
func forwardStream(segments []segment, addr string, speed float64) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	for i, seg := range segments {
		if speed > 0 && i > 0 {
			elapsed := seg.ts.Sub(segments[0].ts)
			target := time.Duration(float64(elapsed) / speed)
			if wait := target - time.Since(start); wait > 0 {
				time.Sleep(wait)
			}
		}
		if _, err := conn.Write(seg.payload); err != nil {
			return fmt.Errorf("writing segment %d: %w", i, err)
		}
	}
	log.Printf("forwarded %d segments to %s in %v", len(segments), addr, time.Since(start))
	return nil
}

// decodeStream runs the reassembled bytes through a demultiplexer with
// per-sensor file sinks, same as the live receiver would.
func decodeStream(segments []segment, outDir string) error {
	var stream bytes.Buffer
	for _, seg := range segments {
		stream.Write(seg.payload)
	}

	demux := mux.NewDemultiplexer()
	for _, sensorType := range []uint16{mux.SensorDepth, mux.SensorWorldCam, mux.SensorIMU} {
		kind := mux.SensorKindOf(sensorType)
		sink, err := mux.NewFileSink(filepath.Join(outDir, fmt.Sprintf("%s_s0", kind)), 0)
		if err != nil {
			return err
		}
		demux.Route(sensorType, 0, sink)
	}
	fallbackSink, err := mux.NewFileSink(filepath.Join(outDir, "unrouted"), 0)
	if err != nil {
		return err
	}
	demux.RouteFallback(fallbackSink)

	err = demux.Run(&stream)
	st := demux.Stats()
	log.Printf("decoded %d frames (%d bytes, %d unrouted) into %s",
		st.Frames, st.Bytes, st.UnroutedFrames, outDir)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}
